// Package hubauthtest provides an in-process fake of the JupyterHub REST API
// and the configurable-http-proxy route API for tests.
package hubauthtest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// Default tokens and cookie name used by FakeHub.
const (
	HubToken   = "hub-secret"
	ProxyToken = "proxy-secret"
	CookieName = "jupyter-hub-token"
)

type userState struct {
	running bool
	pending bool
}

// FakeHub serves both APIs from one httptest.Server.
type FakeHub struct {
	*httptest.Server

	// RegisterStatus is returned by the proxy route API; 201 by default.
	RegisterStatus int

	mu       sync.Mutex
	sessions map[string]string
	users    map[string]*userState
	routes   map[string]string
	spawns   map[string]int
	lookups  int
}

// NewFakeHub starts a fake hub that is closed when the test ends.
func NewFakeHub(t *testing.T) *FakeHub {
	t.Helper()

	f := &FakeHub{
		RegisterStatus: http.StatusCreated,
		sessions:       map[string]string{},
		users:          map[string]*userState{},
		routes:         map[string]string{},
		spawns:         map[string]int{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/routes/{route...}", f.handleRegister)
	mux.HandleFunc("GET /hub/api/authorizations/cookie/{name}/{value}", f.handleCookie)
	mux.HandleFunc("GET /hub/api/users/{user}", f.handleUser)
	mux.HandleFunc("POST /hub/api/users/{user}/server", f.handleSpawn)
	mux.HandleFunc("POST /hub/api/users/{user}/admin-access", f.handleAdminAccess)

	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

// AddSession makes cookie resolve to user.
func (f *FakeHub) AddSession(cookie, user string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[cookie] = user
}

// AddUser declares a hub user, optionally with a running server.
func (f *FakeHub) AddUser(name string, running bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[name] = &userState{running: running}
}

// Routes returns the registered proxy routes (prefix -> target).
func (f *FakeHub) Routes() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make(map[string]string, len(f.routes))
	for k, v := range f.routes {
		result[k] = v
	}
	return result
}

// Spawns returns how many times the server of user was started.
func (f *FakeHub) Spawns(user string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.spawns[user]
}

// CookieLookups returns how many cookie verifications reached the hub.
func (f *FakeHub) CookieLookups() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lookups
}

// AdminCookieValue is the cookie value FakeHub hands out for user's server.
func AdminCookieValue(user string) string {
	return "admin-" + user
}

func authorized(r *http.Request, token string) bool {
	return r.Header.Get("Authorization") == "token "+token
}

func (f *FakeHub) handleRegister(w http.ResponseWriter, r *http.Request) {
	if !authorized(r, ProxyToken) {
		http.Error(w, "invalid proxy token", http.StatusForbidden)
		return
	}
	var body struct {
		Target string `json:"target"`
	}
	data, _ := io.ReadAll(r.Body)
	if err := json.Unmarshal(data, &body); err != nil || body.Target == "" {
		http.Error(w, "missing target", http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	status := f.RegisterStatus
	if status == http.StatusCreated {
		f.routes["/"+r.PathValue("route")] = body.Target
	}
	f.mu.Unlock()

	w.WriteHeader(status)
}

func (f *FakeHub) handleCookie(w http.ResponseWriter, r *http.Request) {
	if !authorized(r, HubToken) {
		w.WriteHeader(http.StatusForbidden)
		return
	}
	f.mu.Lock()
	f.lookups++
	user, ok := f.sessions[r.PathValue("value")]
	f.mu.Unlock()
	if !ok || r.PathValue("name") != CookieName {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]interface{}{"name": user, "admin": false})
}

func (f *FakeHub) handleUser(w http.ResponseWriter, r *http.Request) {
	if !authorized(r, HubToken) {
		w.WriteHeader(http.StatusForbidden)
		return
	}
	name := r.PathValue("user")
	f.mu.Lock()
	state, ok := f.users[name]
	var server, pending interface{}
	if ok {
		if state.running {
			server = "/user/" + name
		}
		if state.pending {
			pending = "spawn"
		}
	}
	f.mu.Unlock()
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]interface{}{"name": name, "server": server, "pending": pending})
}

func (f *FakeHub) handleSpawn(w http.ResponseWriter, r *http.Request) {
	if !authorized(r, HubToken) {
		w.WriteHeader(http.StatusForbidden)
		return
	}
	name := r.PathValue("user")
	f.mu.Lock()
	defer f.mu.Unlock()
	state, ok := f.users[name]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	f.spawns[name]++
	state.pending = true
	w.WriteHeader(http.StatusAccepted)
}

func (f *FakeHub) handleAdminAccess(w http.ResponseWriter, r *http.Request) {
	if !authorized(r, HubToken) {
		w.WriteHeader(http.StatusForbidden)
		return
	}
	name := r.PathValue("user")
	f.mu.Lock()
	_, ok := f.users[name]
	f.mu.Unlock()
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Header().Add("Set-Cookie", fmt.Sprintf(`%s-%s="%s"; Path=/user/%s; HttpOnly`, CookieName, name, AdminCookieValue(name), name))
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
