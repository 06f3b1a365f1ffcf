package api

import (
	"net/http"

	"github.com/shaiso/Launchpad/internal/mq"
)

// TokenSuccess завершает асинхронный шаг успешно.
// POST /api/v1/tokens/{token}/success
func (h *Handler) TokenSuccess(w http.ResponseWriter, r *http.Request) {
	var req TokenSuccessRequest
	if !decodeBody(w, r, &req, true) {
		return
	}

	h.completeToken(w, r, mq.StepCompletedPayload{
		Token:  r.PathValue("token"),
		Output: req.Output,
	})
}

// TokenFailure завершает асинхронный шаг ошибкой.
// POST /api/v1/tokens/{token}/failure
func (h *Handler) TokenFailure(w http.ResponseWriter, r *http.Request) {
	var req TokenFailureRequest
	if !decodeBody(w, r, &req, false) {
		return
	}
	if req.Error == "" {
		BadRequest(w, "error is required")
		return
	}

	h.completeToken(w, r, mq.StepCompletedPayload{
		Token: r.PathValue("token"),
		Error: req.Error,
		Cause: req.Cause,
	})
}

// completeToken проверяет, что токен ждёт завершения, и публикует
// step.completed. Доставку до ожидающего узла выполняет координатор.
func (h *Handler) completeToken(w http.ResponseWriter, r *http.Request, payload mq.StepCompletedPayload) {
	runID := ""
	if h.nodes != nil {
		node, err := h.nodes.FindByToken(r.Context(), payload.Token)
		if HandleRepoError(w, h.logger, err, "token not found") {
			return
		}
		if node.Status.IsTerminal() {
			Conflict(w, "token is already completed")
			return
		}
		runID = node.RunID.String()
	}

	if h.publisher == nil {
		InvalidState(w, "completions are not accepted")
		return
	}
	if err := h.publisher.PublishStepCompleted(r.Context(), payload); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	h.logger.Info("token completion accepted",
		"token", payload.Token,
		"run_id", runID,
		"failed", payload.Error != "",
	)

	Accepted(w, map[string]string{"token": payload.Token})
}
