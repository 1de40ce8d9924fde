package httptransport

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	id "tripsecretary/pkg/domain"
	dErrors "tripsecretary/pkg/domain-errors"
	"tripsecretary/pkg/platform/httputil"
)

func (h *Handler) handleListPassports(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userFrom(w, r)
	if !ok {
		return
	}
	passports, err := h.records.ListPassports(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, err, "list passports")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"passports": passports})
}

func (h *Handler) handleGetPassport(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userFrom(w, r)
	if !ok {
		return
	}
	passportID, err := id.ParsePassportID(chi.URLParam(r, "passportID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	passport, err := h.records.GetPassport(r.Context(), userID, passportID)
	if err != nil {
		h.writeServiceError(w, r, err, "get passport")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, passport)
}

func (h *Handler) handleSetPrimaryPassport(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userFrom(w, r)
	if !ok {
		return
	}
	passportID, err := id.ParsePassportID(chi.URLParam(r, "passportID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.records.SetPrimaryPassport(r.Context(), userID, passportID); err != nil {
		h.writeServiceError(w, r, err, "set primary passport")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDeletePassport(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userFrom(w, r)
	if !ok {
		return
	}
	passportID, err := id.ParsePassportID(chi.URLParam(r, "passportID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.records.DeletePassport(r.Context(), userID, passportID); err != nil {
		h.writeServiceError(w, r, err, "delete passport")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGetPersonalInfo(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userFrom(w, r)
	if !ok {
		return
	}
	info, err := h.records.GetPersonalInfo(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, err, "get personal info")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, info)
}

func (h *Handler) handleListFundItems(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userFrom(w, r)
	if !ok {
		return
	}
	items, err := h.records.ListFundItems(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, err, "list fund items")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"fund_items": items})
}

func (h *Handler) handleDeleteFundItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userFrom(w, r)
	if !ok {
		return
	}
	fundItemID, err := id.ParseFundItemID(chi.URLParam(r, "fundItemID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.records.DeleteFundItem(r.Context(), userID, fundItemID); err != nil {
		h.writeServiceError(w, r, err, "delete fund item")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGetTravelInfo(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userFrom(w, r)
	if !ok {
		return
	}
	info, err := h.records.GetTravelInfo(r.Context(), userID, chi.URLParam(r, "destinationID"))
	if err != nil {
		h.writeServiceError(w, r, err, "get travel info")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, info)
}

func (h *Handler) handleCompletion(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userFrom(w, r)
	if !ok {
		return
	}
	summary, err := h.records.Completion(r.Context(), userID, chi.URLParam(r, "destinationID"))
	if err != nil {
		h.writeServiceError(w, r, err, "compute completion")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, summary)
}

func (h *Handler) handleEntrySummary(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userFrom(w, r)
	if !ok {
		return
	}
	entry, err := h.records.EntrySummary(r.Context(), userID, chi.URLParam(r, "destinationID"))
	if err != nil {
		h.writeServiceError(w, r, err, "get entry summary")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entry)
}

func (h *Handler) handleListEntries(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userFrom(w, r)
	if !ok {
		return
	}
	entries, err := h.records.ListEntries(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, err, "list entries")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

type documentUploadedRequest struct {
	Section string `json:"section"`
	Ref     string `json:"ref"`
}

func (h *Handler) handleDocumentUploaded(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userFrom(w, r)
	if !ok {
		return
	}
	var req documentUploadedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Section == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "section and ref are required"))
		return
	}
	if err := h.records.SetDocumentUploaded(r.Context(), userID, chi.URLParam(r, "destinationID"), req.Section, req.Ref); err != nil {
		h.writeServiceError(w, r, err, "record document upload")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDeleteAllUserData cascades erasure across records, interaction state
// and card history.
func (h *Handler) handleDeleteAllUserData(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userFrom(w, r)
	if !ok {
		return
	}
	if err := h.records.DeleteAllUserData(r.Context(), userID); err != nil {
		h.writeServiceError(w, r, err, "delete user data")
		return
	}
	if err := h.cards.DeleteAllForUser(r.Context(), userID); err != nil {
		h.writeServiceError(w, r, err, "delete card history")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
