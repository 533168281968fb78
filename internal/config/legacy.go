package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// legacyOption 记录已更名/移除的 HubAuth 配置项及其替代项。
type legacyOption struct {
	Name        string
	Replacement string
}

// legacyOptions 的顺序决定多个旧字段同时出现时报告哪一个。
var legacyOptions = []legacyOption{
	{Name: "proxy_address", Replacement: "proxy_base_url"},
	{Name: "proxy_port", Replacement: "proxy_base_url"},
	{Name: "hub_address", Replacement: "hub_base_url"},
	{Name: "hub_port", Replacement: "hub_base_url"},
	{Name: "hubapi_address", Replacement: "hubapi_base_url"},
	{Name: "hubapi_port", Replacement: "hubapi_base_url"},
}

// rejectLegacyOptions 在解码前检查旧字段，命中即返回包含替代项名称的 FieldError。
func rejectLegacyOptions(v *viper.Viper) error {
	for _, opt := range legacyOptions {
		if !v.IsSet(hubAuthField(opt.Name)) {
			continue
		}
		return FieldError{
			Field:  hubAuthField(opt.Name),
			Reason: fmt.Sprintf("is no longer a valid configuration option, please use %s instead", hubAuthField(opt.Replacement)),
			Err:    ErrLegacyOption,
		}
	}
	return nil
}
