package errx

// 跨服务统一的系统类错误码。业务域错误码由各业务包自行定义。
const (
	CodeInternal     Code = "INTERNAL_ERROR"
	CodeUnavailable  Code = "SERVICE_UNAVAILABLE"
	CodeTimeout      Code = "TIMEOUT"
	CodeRateLimited  Code = "RATE_LIMITED"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeBadRequest   Code = "BAD_REQUEST"
)

var (
	ErrInternal     = NewFault(CodeInternal, "internal error")
	ErrUnavailable  = NewFault(CodeUnavailable, "service unavailable")
	ErrTimeout      = NewFault(CodeTimeout, "request timeout")
	ErrRateLimited  = NewPrecondition(CodeRateLimited, "too many requests")
	ErrUnauthorized = NewValidation(CodeUnauthorized, "unauthorized")
	ErrBadRequest   = NewValidation(CodeBadRequest, "malformed request")
)
