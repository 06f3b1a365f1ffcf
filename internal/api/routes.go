package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		RequestID(h.logger),
		Logging(h.logger),
		Recovery(h.logger),
	)

	// Configurations
	mux.Handle("GET /api/v1/configurations", chain(http.HandlerFunc(h.ListConfigurations)))
	mux.Handle("GET /api/v1/configurations/{namespace}/{name}", chain(http.HandlerFunc(h.GetConfiguration)))
	mux.Handle("PUT /api/v1/configurations/{namespace}/{name}", chain(http.HandlerFunc(h.PutConfiguration)))
	mux.Handle("DELETE /api/v1/configurations/{namespace}/{name}", chain(http.HandlerFunc(h.DeleteConfiguration)))
	mux.Handle("POST /api/v1/configurations/{namespace}/{name}/resolve", chain(http.HandlerFunc(h.ResolveConfiguration)))

	// Launch functions
	mux.Handle("GET /api/v1/launch-functions", chain(http.HandlerFunc(h.ListLaunchFunctions)))
	mux.Handle("GET /api/v1/launch-functions/{namespace}/{name}", chain(http.HandlerFunc(h.GetLaunchFunction)))
	mux.Handle("PUT /api/v1/launch-functions/{namespace}/{name}", chain(http.HandlerFunc(h.PutLaunchFunction)))
	mux.Handle("DELETE /api/v1/launch-functions/{namespace}/{name}", chain(http.HandlerFunc(h.DeleteLaunchFunction)))

	// Runs
	mux.Handle("POST /api/v1/launch-functions/{namespace}/{name}/runs", chain(http.HandlerFunc(h.StartRun)))
	mux.Handle("GET /api/v1/runs", chain(http.HandlerFunc(h.ListRuns)))
	mux.Handle("GET /api/v1/runs/{id}", chain(http.HandlerFunc(h.GetRun)))
	mux.Handle("POST /api/v1/runs/{id}/cancel", chain(http.HandlerFunc(h.CancelRun)))
	mux.Handle("GET /api/v1/runs/{id}/nodes", chain(http.HandlerFunc(h.ListRunNodes)))

	// Tokens
	mux.Handle("POST /api/v1/tokens/{token}/success", chain(http.HandlerFunc(h.TokenSuccess)))
	mux.Handle("POST /api/v1/tokens/{token}/failure", chain(http.HandlerFunc(h.TokenFailure)))
}
