package hubauth

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/hubauth/internal/config"
)

// recordedRequest 捕获 stub 收到的请求，便于断言 header/body。
type recordedRequest struct {
	Method        string
	Path          string
	Authorization string
	UserAgent     string
	Body          []byte
}

// remoteStub 同时模拟 hub API 与 proxy API，handler 由各测试按路径注册。
type remoteStub struct {
	*httptest.Server

	mu       sync.Mutex
	requests []recordedRequest
	mux      *http.ServeMux
}

func newRemoteStub(t *testing.T) *remoteStub {
	t.Helper()
	stub := &remoteStub{mux: http.NewServeMux()}
	stub.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = r.Body.Close()
		stub.mu.Lock()
		stub.requests = append(stub.requests, recordedRequest{
			Method:        r.Method,
			Path:          r.URL.EscapedPath(),
			Authorization: r.Header.Get("Authorization"),
			UserAgent:     r.Header.Get("User-Agent"),
			Body:          body,
		})
		stub.mu.Unlock()
		r.Body = io.NopCloser(bytes.NewReader(body))
		stub.mux.ServeHTTP(w, r)
	}))
	t.Cleanup(stub.Close)
	return stub
}

func (s *remoteStub) Handle(pattern string, fn http.HandlerFunc) {
	s.mux.HandleFunc(pattern, fn)
}

func (s *remoteStub) Requests() []recordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]recordedRequest, len(s.requests))
	copy(result, s.requests)
	return result
}

func (s *remoteStub) Count(method, path string) int {
	count := 0
	for _, req := range s.Requests() {
		if req.Method == method && req.Path == path {
			count++
		}
	}
	return count
}

// testConfig 构造一份指向 stub 的已解析配置。
func testConfig(stubURL string) *config.Config {
	return &config.Config{
		Global: config.GlobalConfig{
			ListenIP:       "127.0.0.1",
			ListenPort:     5005,
			CourseID:       "course101",
			RequestTimeout: config.Duration(5 * time.Second),
		},
		HubAuth: config.HubAuthConfig{
			AuthMode:      config.AuthModeHub,
			Graders:       []string{"instructor1", "instructor2"},
			HubBaseURL:    "http://hub.example.edu",
			HubAPIBaseURL: stubURL,
			HubAPIToken:   "hub-secret",
			HubAPICookie:  "jupyter-hub-token",
			ProxyBaseURL:  stubURL,
			ProxyToken:    "proxy-secret",
			RemapURL:      "/hub/nbgrader/course101",
			LoginURL:      "/hub/login",
		},
	}
}

type logCapture struct {
	logger *logrus.Logger
	buf    *bytes.Buffer
}

func newLogCapture() *logCapture {
	buf := &bytes.Buffer{}
	logger := logrus.New()
	logger.SetOutput(buf)
	logger.SetFormatter(&logrus.JSONFormatter{})
	return &logCapture{logger: logger, buf: buf}
}

func (l *logCapture) String() string {
	return l.buf.String()
}

func newTestAdapter(t *testing.T, cfg *config.Config, logs *logCapture) *Adapter {
	t.Helper()
	if logs == nil {
		logs = newLogCapture()
	}
	adapter, err := newAdapter(Options{
		Config:   cfg,
		Identity: DisabledIdentityFromConfig(cfg.HubAuth),
		Client:   &http.Client{Timeout: 5 * time.Second},
		Logger:   logs.logger,
	})
	if err != nil {
		t.Fatalf("newAdapter failed: %v", err)
	}
	return adapter
}
