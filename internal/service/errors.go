package service

import (
	"errors"
)

const (
	BadRequest          = 400
	Unauthorized        = 401
	Forbidden           = 403
	NotFound            = 404
	Conflict            = 409
	InternalServerError = 500
)

var (
	ErrParamInvalid           = errors.New("参数错误")
	ErrUserNotFound           = errors.New("用户不存在")
	ErrNotificationNotFound   = errors.New("通知不存在")
	ErrConfirmationNotPending = errors.New("通知无需确认或确认已超时")
	ErrPreferenceInvalid      = errors.New("通知偏好设置无效")
	ErrUnknownClientEvent     = errors.New("未知的客户端事件")
	UnauthorizedError         = errors.New("权限不足")
	UnExpectedError           = errors.New("系统异常，请稍后重试")
)

var ErrorMap = map[error]int{
	ErrParamInvalid:           BadRequest,
	ErrUserNotFound:           NotFound,
	ErrNotificationNotFound:   NotFound,
	ErrConfirmationNotPending: Conflict,
	ErrPreferenceInvalid:      BadRequest,
	ErrUnknownClientEvent:     BadRequest,
	UnauthorizedError:         Unauthorized,
	UnExpectedError:           InternalServerError,
}
