package config

import (
	"errors"
	"fmt"
)

// ErrLegacyOption 表示配置中出现了已移除的 HubAuth 选项，可用 errors.Is 判断。
var ErrLegacyOption = errors.New("legacy configuration option")

// FieldError 携带出错字段的完整路径（如 HubAuth.remap_url）与原因。
type FieldError struct {
	Field  string
	Reason string
	// Err 为可选的分类错误，例如 ErrLegacyOption。
	Err error
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e FieldError) Unwrap() error {
	return e.Err
}

func newFieldError(field, reason string) error {
	return FieldError{Field: field, Reason: reason}
}

// hubAuthField 输出 [HubAuth] 表内字段的路径。
func hubAuthField(name string) string {
	return "HubAuth." + name
}
