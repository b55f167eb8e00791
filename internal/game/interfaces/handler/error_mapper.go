package handler

import (
	"context"
	"errors"
	nethttp "net/http"

	"Conquest/internal/game/actor"
	"Conquest/internal/game/errs"
	"Conquest/internal/shared/transport"
	"Conquest/modules/kit/errx"
	"Conquest/modules/kit/logx"
)

const busyMessage = "系统繁忙，请稍后重试"

// HandleError 把领域错误映射为 HTTP 状态码和响应体。故障在状态层已记录，这里只补记运行时错误。
func HandleError(ctx context.Context, l logx.Logger, err error) (int, Response) {
	if err == nil {
		return nethttp.StatusOK, Success(nil)
	}

	if actor.IsRuntimeError(err) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		reason := errx.ErrUnavailable.CodeText()
		if errors.Is(err, context.DeadlineExceeded) {
			reason = errx.ErrTimeout.CodeText()
		}
		transport.SetErrorReason(ctx, reason)
		logx.ReportSysErrorWithLoggerContext(ctx, l, logx.NewSysLog("game.dispatch", err))
		return nethttp.StatusServiceUnavailable, unavailable(reason)
	}

	var e *errx.Error
	if !errors.As(err, &e) || !e.Kind().Rejected() {
		reason := errx.ErrInternal.CodeText()
		if e != nil {
			reason = e.CodeText()
		}
		transport.SetErrorReason(ctx, reason)
		return nethttp.StatusInternalServerError, Error(transport.SystemError, busyMessage)
	}

	transport.SetErrorReason(ctx, e.CodeText())
	status, code := rejectionStatus(e)
	return status, Response{
		Code:    code,
		Reason:  e.CodeText(),
		Message: e.Msg(),
		Details: e.Data(),
	}
}

func unavailable(reason string) Response {
	resp := Error(transport.Unavailable, busyMessage)
	resp.Reason = reason
	return resp
}

func rejectionStatus(e *errx.Error) (int, int) {
	switch {
	case errors.Is(e, errs.ErrPlayerNotFound), errors.Is(e, errs.ErrCityNotFound):
		return nethttp.StatusNotFound, transport.NotFound
	case errors.Is(e, errs.ErrNotCityOwner):
		return nethttp.StatusForbidden, transport.Forbidden
	}
	switch e.Kind() {
	case errx.KindPrecondition:
		return nethttp.StatusConflict, transport.Conflict
	case errx.KindResource:
		return nethttp.StatusUnprocessableEntity, transport.InsufficientResources
	default:
		return nethttp.StatusBadRequest, transport.InvalidParam
	}
}
