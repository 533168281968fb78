// Package hubauth adapts a grader-facing web service to a shared JupyterHub
// deployment. It resolves the logged-in user from the hub session cookie,
// checks it against the configured grader allow-list, registers the service
// prefix with configurable-http-proxy, rewrites route patterns under that
// prefix, and talks to the hub API to start notebook servers or obtain
// admin-access cookies for another user's server.
//
// The Adapter is built once at startup from an immutable config.Config and is
// safe for concurrent use. Per-request state (the authenticated grader) lives
// in a Session.
package hubauth
