package httptransport

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	id "tripsecretary/pkg/domain"
	dErrors "tripsecretary/pkg/domain-errors"
	"tripsecretary/pkg/platform/httputil"
	"tripsecretary/pkg/requestcontext"
)

type submitCardRequest struct {
	CardType string `json:"card_type"`
	Method   string `json:"method,omitempty"`
}

// handleSubmitCard submits the entry's data to the authority. The response
// is always the persisted attempt record; a failed authority call is a 502
// carrying the failed attempt so the client can show retry guidance.
func (h *Handler) handleSubmitCard(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userFrom(w, r)
	if !ok {
		return
	}
	entryID, err := id.ParseEntryInfoID(chi.URLParam(r, "entryID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req submitCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	cardType, err := id.ParseCardType(req.CardType)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	method := id.SubmissionMethod(req.Method)

	card, err := h.cards.Submit(r.Context(), userID, entryID, cardType, method)
	if err != nil {
		h.writeServiceError(w, r, err, "submit card")
		return
	}
	if card.Status == id.CardStatusFailed {
		h.logger.WarnContext(r.Context(), "card submission failed",
			"request_id", requestcontext.RequestID(r.Context()),
			"card_id", card.ID.String(),
		)
		httputil.WriteJSON(w, http.StatusBadGateway, card)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, card)
}

func (h *Handler) handleCardHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userFrom(w, r)
	if !ok {
		return
	}
	entryID, err := id.ParseEntryInfoID(chi.URLParam(r, "entryID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	history, err := h.cards.History(r.Context(), userID, entryID)
	if err != nil {
		h.writeServiceError(w, r, err, "list card history")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"cards": history})
}

func (h *Handler) handleLatestCard(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userFrom(w, r)
	if !ok {
		return
	}
	entryID, err := id.ParseEntryInfoID(chi.URLParam(r, "entryID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	cardType, err := id.ParseCardType(r.URL.Query().Get("card_type"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	card, err := h.cards.LatestCard(r.Context(), userID, entryID, cardType)
	if err != nil {
		h.writeServiceError(w, r, err, "get latest card")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, card)
}
