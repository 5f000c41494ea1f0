package selector

import (
	"errors"
	"fmt"
)

type Status string

const (
	StatusLoading  Status = "loading"  // 认证状态未确定，显示占位
	StatusMounted  Status = "mounted"
	StatusRedirect Status = "redirect" // 需要登录
	StatusFailed   Status = "failed"
	StatusClosed   Status = "closed"
)

type ErrorKind string

const (
	ErrorKindNone  ErrorKind = ""
	ErrorKindMount ErrorKind = "mount"
	ErrorKindAuth  ErrorKind = "auth"
)

var ErrVariantMissing = errors.New("page has no component for variant")

// Region 单个内容区域的状态，失败时携带错误类别，可通过 Host.Reset 恢复
type Region struct {
	Page    string    `json:"page"`
	Status  Status    `json:"status"`
	Variant Variant   `json:"variant,omitempty"`
	Kind    ErrorKind `json:"kind,omitempty"`
	Message string    `json:"message,omitempty"`
	Err     error     `json:"-"`
}

func (r Region) Retryable() bool {
	return r.Status == StatusFailed
}

// PanicError 组件挂载时 panic 被隔离在所属区域内
type PanicError struct {
	Value interface{}
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("component panicked: %v", e.Value)
}

func safeMount(c Component, scope *Scope) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	return c.Mount(scope)
}

func safeUnmount(c Component) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	c.Unmount()
	return nil
}
