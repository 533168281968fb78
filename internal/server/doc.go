// Package server hosts the Fiber HTTP service that sits behind the JupyterHub
// proxy route. It owns the request middleware chain (request id, hub cookie
// authentication, grader authorization), the shared outbound http.Client used
// for hub/proxy API calls, and the helper that mounts prefixed routes.
// Keep exports narrow and accept explicit dependencies; the hubauth adapter is
// built by the caller and injected through AppOptions.
package server
