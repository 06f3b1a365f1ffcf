package api

import (
	"net/http"

	"github.com/shaiso/Launchpad/internal/domain"
	"github.com/shaiso/Launchpad/internal/pipeline"
)

// ListLaunchFunctions возвращает список launch-функций.
// GET /api/v1/launch-functions?namespace=...
func (h *Handler) ListLaunchFunctions(w http.ResponseWriter, r *http.Request) {
	fns, err := h.functions.List(r.Context(), r.URL.Query().Get("namespace"))
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]LaunchFunctionResponse, len(fns))
	for i, fn := range fns {
		result[i] = LaunchFunctionFromDomain(fn)
	}

	List(w, result, len(result))
}

// GetLaunchFunction возвращает launch-функцию.
// GET /api/v1/launch-functions/{namespace}/{name}
func (h *Handler) GetLaunchFunction(w http.ResponseWriter, r *http.Request) {
	fn, err := h.functions.Get(r.Context(), r.PathValue("namespace"), r.PathValue("name"))
	if HandleRepoError(w, h.logger, err, "launch function not found") {
		return
	}

	Success(w, LaunchFunctionFromDomain(*fn))
}

// PutLaunchFunction создаёт или заменяет launch-функцию.
// PUT /api/v1/launch-functions/{namespace}/{name}
//
// Перед сохранением по функции строится граф: ошибки описания и ссылки
// на отсутствующую конфигурацию отклоняются сразу, а не при запуске run.
func (h *Handler) PutLaunchFunction(w http.ResponseWriter, r *http.Request) {
	var req PutLaunchFunctionRequest
	if !decodeBody(w, r, &req, false) {
		return
	}

	fn := &domain.LaunchFunction{
		Namespace:   r.PathValue("namespace"),
		Name:        r.PathValue("name"),
		Description: req.Description,
		Spec:        req.Spec,
	}

	if _, err := pipeline.Build(r.Context(), fn, h.configs, h.resolver); err != nil {
		HandleBuildError(w, err)
		return
	}

	if err := h.functions.Put(r.Context(), fn); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	h.logger.Info("launch function saved",
		"namespace", fn.Namespace,
		"name", fn.Name,
		"kind", fn.Spec.Kind,
	)

	Success(w, LaunchFunctionFromDomain(*fn))
}

// DeleteLaunchFunction удаляет launch-функцию.
// DELETE /api/v1/launch-functions/{namespace}/{name}
func (h *Handler) DeleteLaunchFunction(w http.ResponseWriter, r *http.Request) {
	err := h.functions.Delete(r.Context(), r.PathValue("namespace"), r.PathValue("name"))
	if HandleRepoError(w, h.logger, err, "launch function not found") {
		return
	}

	NoContent(w)
}
