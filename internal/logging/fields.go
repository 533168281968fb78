package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// RemoteFields 描述一次对 hub/proxy API 的出站调用，供告警日志复用。
func RemoteFields(action, service, user string, status int) logrus.Fields {
	fields := logrus.Fields{
		"action":  action,
		"service": service,
		"status":  status,
	}
	if user != "" {
		fields["user"] = user
	}
	return fields
}

// RequestFields 提供单次入站请求的 request_id/path/user 字段。
func RequestFields(requestID, path, user string) logrus.Fields {
	return logrus.Fields{
		"request_id": requestID,
		"path":       path,
		"user":       user,
	}
}
