package transport

// BizCode 表示业务码的强类型封装，用于在日志上下文中减少误传风险。
type BizCode int

// 响应体里的 code，客户端按它分支。小于 500 是业务拒绝，访问日志记 WARN；其余记 ERROR。
const (
	OK                    = 0
	InvalidParam          = 100
	Unauthorized          = 101
	Forbidden             = 102
	NotFound              = 103
	Conflict              = 104
	InsufficientResources = 105
	RateLimited           = 106
	SystemError           = 500
	Unavailable           = 503
)
