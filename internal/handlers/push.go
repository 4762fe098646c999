package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/krishanraja/try-ritual-sub002/internal/middleware"
	"github.com/krishanraja/try-ritual-sub002/internal/models"
	"github.com/krishanraja/try-ritual-sub002/internal/repository"
)

type PushHandler struct {
	subscriptionRepo repository.PushSubscriptionRepository
}

func NewPushHandler(subscriptionRepo repository.PushSubscriptionRepository) *PushHandler {
	return &PushHandler{subscriptionRepo: subscriptionRepo}
}

type subscribeRequest struct {
	Endpoint string `json:"endpoint"`
}

func (handler *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetPartner(r.Context())

	var request subscribeRequest
	if err := decodeJSON(r, &request); err != nil || request.Endpoint == "" {
		writeError(w, http.StatusBadRequest, "endpoint is required")
		return
	}

	subscription, err := handler.subscriptionRepo.Upsert(r.Context(), models.PushSubscription{
		PartnerID: caller.ID,
		Endpoint:  request.Endpoint,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not save subscription")
		return
	}
	writeJSON(w, http.StatusCreated, subscription)
}

func (handler *PushHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetPartner(r.Context())

	if err := handler.subscriptionRepo.Delete(r.Context(), chi.URLParam(r, "id"), caller.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "could not delete subscription")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
