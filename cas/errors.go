package cas

import (
	"errors"
	"strconv"
)

// ErrValidation 所有 ticket 验证失败的 error 都满足 errors.Is(err, ErrValidation)
var ErrValidation = errors.New("cas: ticket validation failed")

// Reason 验证失败的原因
type Reason int

const (
	// ReasonNetwork CAS 服务器无法访问或超时
	ReasonNetwork Reason = iota + 1
	// ReasonServer CAS 服务器返回了非 2xx 的状态码
	ReasonServer
	// ReasonParse 响应不是合法的 CAS XML
	ReasonParse
	// ReasonRejected CAS 服务器明确拒绝了 ticket
	ReasonRejected
	// ReasonNoPrincipal 响应成功但是没有用户名
	ReasonNoPrincipal
)

func (r Reason) String() string {
	switch r {
	case ReasonNetwork:
		return "network"
	case ReasonServer:
		return "server"
	case ReasonParse:
		return "parse"
	case ReasonRejected:
		return "rejected"
	case ReasonNoPrincipal:
		return "no_principal"
	}
	return "unknown(" + strconv.Itoa(int(r)) + ")"
}

// Error 带有失败原因的 error
type Error struct {
	Reason Reason
	// Code is the CAS failure code (INVALID_TICKET, INVALID_SERVICE, ...)
	// for ReasonRejected, or the HTTP status for ReasonServer.
	Code    string
	Message string
	Err     error
}

func (err *Error) Error() string {
	s := "cas: " + err.Reason.String()
	if err.Code != "" {
		s += " [" + err.Code + "]"
	}
	if err.Message != "" {
		s += " " + err.Message
	}
	if err.Err != nil {
		s += ": " + err.Err.Error()
	}
	return s
}

func (err *Error) Unwrap() error {
	return err.Err
}

// Is makes every *Error match ErrValidation.
func (err *Error) Is(target error) bool {
	return target == ErrValidation
}

// ReasonOf returns the failure reason of err, or 0 if err is not a validation error.
func ReasonOf(err error) Reason {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return 0
}

func newError(reason Reason, code, message string, err error) *Error {
	return &Error{Reason: reason, Code: code, Message: message, Err: err}
}
