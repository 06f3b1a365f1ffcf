package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/shaiso/Launchpad/internal/domain"
	"github.com/shaiso/Launchpad/internal/repo"
)

// StartRun создаёт run launch-функции.
// POST /api/v1/launch-functions/{namespace}/{name}/runs
func (h *Handler) StartRun(w http.ResponseWriter, r *http.Request) {
	namespace, name := r.PathValue("namespace"), r.PathValue("name")

	var req StartRunRequest
	if !decodeBody(w, r, &req, true) {
		return
	}

	// Проверяем, что функция существует
	_, err := h.functions.Get(r.Context(), namespace, name)
	if HandleRepoError(w, h.logger, err, "launch function not found") {
		return
	}

	// Проверяем idempotency key
	if req.IdempotencyKey != "" {
		if existing, ok := h.findByKey(r, namespace, name, req.IdempotencyKey); ok {
			Success(w, RunFromDomain(*existing))
			return
		}
	}

	run := domain.NewRun(namespace, name, req.Input)
	run.IdempotencyKey = req.IdempotencyKey

	if err := h.runs.Create(r.Context(), run); err != nil {
		// Параллельный запрос с тем же ключом успел раньше.
		if errors.Is(err, repo.ErrAlreadyExists) && req.IdempotencyKey != "" {
			if existing, ok := h.findByKey(r, namespace, name, req.IdempotencyKey); ok {
				Success(w, RunFromDomain(*existing))
				return
			}
		}
		HandleRepoError(w, h.logger, err, "")
		return
	}

	// Публикуем событие в очередь; без него run подхватит polling координатора
	if h.publisher != nil {
		if err := h.publisher.PublishRunPending(r.Context(), run.ID); err != nil {
			h.logger.Warn("failed to publish run.pending", "run_id", run.ID, "error", err)
		}
	}

	h.logger.Info("run created",
		"run_id", run.ID,
		"namespace", namespace,
		"launch_function", name,
	)

	Created(w, RunFromDomain(*run))
}

func (h *Handler) findByKey(r *http.Request, namespace, name, key string) (*domain.Run, bool) {
	run, err := h.runs.GetByIdempotencyKey(r.Context(), namespace, name, key)
	if err != nil || run == nil {
		return nil, false
	}
	return run, true
}

// ListRuns возвращает список runs с фильтрацией.
// GET /api/v1/runs?namespace=...&launch_function=...&status=...&limit=...&offset=...
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repo.RunFilter{
		Namespace:      q.Get("namespace"),
		LaunchFunction: q.Get("launch_function"),
		Limit:          queryInt(q.Get("limit"), 50),
		Offset:         queryInt(q.Get("offset"), 0),
	}

	if status := q.Get("status"); status != "" {
		filter.Status = domain.RunStatus(status)
		if !filter.Status.IsValid() {
			BadRequest(w, "invalid status")
			return
		}
	}

	runs, err := h.runs.List(r.Context(), filter)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]RunResponse, len(runs))
	for i, run := range runs {
		result[i] = RunFromDomain(run)
	}

	List(w, result, len(result))
}

// GetRun возвращает run по ID.
// GET /api/v1/runs/{id}
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	run, err := h.runs.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "run not found") {
		return
	}

	Success(w, RunFromDomain(*run))
}

// CancelRun отменяет run.
// POST /api/v1/runs/{id}/cancel
//
// PENDING run отменяется сразу. Для RUNNING публикуется run.cancel,
// итоговый статус сохранит координатор, выполняющий run.
func (h *Handler) CancelRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	var req CancelRunRequest
	if !decodeBody(w, r, &req, true) {
		return
	}

	run, err := h.runs.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "run not found") {
		return
	}

	if run.IsFinished() {
		InvalidState(w, "run is already finished")
		return
	}

	if run.Status == domain.RunStatusPending {
		pending := *run
		err := h.runs.CancelPending(r.Context(), &pending, req.Reason)
		if err == nil {
			Success(w, RunFromDomain(pending))
			return
		}
		// Run успели забрать: отменяем через координатор.
		if !errors.Is(err, repo.ErrInvalidState) {
			InternalError(w, h.logger, err)
			return
		}
	}

	if h.publisher == nil {
		InvalidState(w, "run is being executed and cannot be cancelled")
		return
	}
	if err := h.publisher.PublishRunCancel(r.Context(), id, req.Reason); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Accepted(w, RunFromDomain(*run))
}

// ListRunNodes возвращает историю узлов run.
// GET /api/v1/runs/{id}/nodes
func (h *Handler) ListRunNodes(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	// Проверяем, что run существует
	_, err = h.runs.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "run not found") {
		return
	}

	nodes, err := h.nodes.ListByRun(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]NodeResponse, len(nodes))
	for i, n := range nodes {
		result[i] = NodeFromDomain(n)
	}

	List(w, result, len(result))
}

// queryInt парсит query параметр с дефолтным значением.
func queryInt(s string, defaultVal int) int {
	if s == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return defaultVal
	}
	return n
}
