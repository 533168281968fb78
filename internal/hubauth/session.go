package hubauth

import (
	"github.com/sirupsen/logrus"

	"github.com/any-hub/hubauth/internal/metrics"
)

// Session 记录单次请求中通过白名单校验的 grader，不在请求之间共享。
type Session struct {
	adapter *Adapter
	user    string
}

// NewSession 为一次请求创建空会话。
func (a *Adapter) NewSession() *Session {
	return &Session{adapter: a}
}

// Authenticate 仅当 user 在 graders 中时返回 true 并记录该用户；否则告警且不修改会话。
func (s *Session) Authenticate(user string) bool {
	allowed := s.adapter.settings.IsGrader(user)
	metrics.ObserveDecision(allowed)
	if allowed {
		s.user = user
		return true
	}

	s.adapter.logger.WithFields(logrus.Fields{
		"action": "authenticate",
		"user":   user,
	}).Warnf("Unauthorized user %q attempted to access the formgrader.", user)
	return false
}

// User 返回已通过校验的 grader，未通过时为空。
func (s *Session) User() string {
	return s.user
}

// targetUser 是承载 notebook 的用户：notebook_server_user 优先，否则为当前 grader。
func (s *Session) targetUser() string {
	if s.adapter.settings.NotebookServerUser != "" {
		return s.adapter.settings.NotebookServerUser
	}
	return s.user
}
