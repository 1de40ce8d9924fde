package httptransport

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	dErrors "tripsecretary/pkg/domain-errors"
	"tripsecretary/pkg/platform/httputil"
	"tripsecretary/pkg/requestcontext"
)

// saveRequest is the body for both the debounced and the immediate save
// endpoints. Fields carries the full current form state; Edited names the
// fields this interaction changed.
type saveRequest struct {
	Fields map[string]string `json:"fields"`
	Edited []string          `json:"edited"`
}

func (h *Handler) decodeSaveRequest(w http.ResponseWriter, r *http.Request) (*saveRequest, bool) {
	var req saveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(r.Context(), "invalid save request",
			"request_id", requestcontext.RequestID(r.Context()),
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return nil, false
	}
	if req.Fields == nil {
		req.Fields = map[string]string{}
	}
	return &req, true
}

// handleScheduleSave accepts a field update and coalesces it into the next
// debounced write. 202 because persistence is deferred.
func (h *Handler) handleScheduleSave(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userFrom(w, r)
	if !ok {
		return
	}
	req, ok := h.decodeSaveRequest(w, r)
	if !ok {
		return
	}
	formID := chi.URLParam(r, "formID")
	if err := h.records.ScheduleSave(r.Context(), userID, formID, req.Fields, req.Edited); err != nil {
		h.writeServiceError(w, r, err, "schedule save")
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// handleSaveNow persists immediately, flushing any pending debounced write
// for the form first.
func (h *Handler) handleSaveNow(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userFrom(w, r)
	if !ok {
		return
	}
	req, ok := h.decodeSaveRequest(w, r)
	if !ok {
		return
	}
	formID := chi.URLParam(r, "formID")
	if err := h.records.SaveNow(r.Context(), userID, formID, req.Fields, req.Edited); err != nil {
		h.writeServiceError(w, r, err, "save form")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleClearField resets a field to untouched after the client clears it
// programmatically (prefill rollback, dependent-field reset). The next save
// treats the field's value as a default again.
func (h *Handler) handleClearField(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userFrom(w, r)
	if !ok {
		return
	}
	formID := chi.URLParam(r, "formID")
	field := chi.URLParam(r, "field")
	if err := h.records.ClearFieldState(r.Context(), userID, formID, field); err != nil {
		h.writeServiceError(w, r, err, "clear field")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleFlushForm forces any pending debounced write to disk; the client
// calls this when a form unmounts.
func (h *Handler) handleFlushForm(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userFrom(w, r)
	if !ok {
		return
	}
	if err := h.records.FlushForm(r.Context(), userID, chi.URLParam(r, "formID")); err != nil {
		h.writeServiceError(w, r, err, "flush form")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleResetForm drops the pending write and the form's touched state.
func (h *Handler) handleResetForm(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userFrom(w, r)
	if !ok {
		return
	}
	if err := h.records.ResetForm(r.Context(), userID, chi.URLParam(r, "formID")); err != nil {
		h.writeServiceError(w, r, err, "reset form")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeServiceError logs at a level matching the error class and writes the
// mapped response. Internal details never reach the client.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error, op string) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	switch dErrors.CodeOf(err) {
	case dErrors.CodeInternal:
		h.logger.ErrorContext(ctx, "failed to "+op, "request_id", requestID, "error", err.Error())
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to "+op))
	default:
		h.logger.WarnContext(ctx, op+" rejected", "request_id", requestID, "error", err.Error())
		httputil.WriteError(w, err)
	}
}
