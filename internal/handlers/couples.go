package handlers

import (
	"net/http"
	"strings"

	"github.com/krishanraja/try-ritual-sub002/internal/middleware"
	"github.com/krishanraja/try-ritual-sub002/internal/models"
	"github.com/krishanraja/try-ritual-sub002/internal/repository"
)

type CoupleHandler struct {
	coupleRepo  repository.CoupleRepository
	partnerRepo repository.PartnerRepository
}

func NewCoupleHandler(coupleRepo repository.CoupleRepository, partnerRepo repository.PartnerRepository) *CoupleHandler {
	return &CoupleHandler{coupleRepo: coupleRepo, partnerRepo: partnerRepo}
}

type createCoupleRequest struct {
	PartnerEmail string `json:"partner_email"`
	City         string `json:"city"`
	Timezone     string `json:"timezone"`
}

// Create pairs the caller with another registered partner by email.
func (handler *CoupleHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := middleware.GetPartner(ctx)

	var request createCoupleRequest
	if err := decodeJSON(r, &request); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	other, err := handler.partnerRepo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(request.PartnerEmail)))
	if err != nil {
		writeError(w, http.StatusNotFound, "partner not found")
		return
	}
	if other.ID == caller.ID {
		writeError(w, http.StatusBadRequest, "cannot pair with yourself")
		return
	}

	if _, err := handler.coupleRepo.FindByPartnerID(ctx, caller.ID); err == nil {
		writeError(w, http.StatusConflict, "already part of a couple")
		return
	}

	couple, err := handler.coupleRepo.Create(ctx, models.Couple{
		PartnerOneID: caller.ID,
		PartnerTwoID: other.ID,
		City:         request.City,
		Timezone:     request.Timezone,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not create couple")
		return
	}

	writeJSON(w, http.StatusCreated, couple)
}

// Mine returns the caller's couple.
func (handler *CoupleHandler) Mine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := middleware.GetPartner(ctx)

	couple, err := handler.coupleRepo.FindByPartnerID(ctx, caller.ID)
	if err != nil {
		writeError(w, http.StatusNotFound, "no couple found")
		return
	}
	writeJSON(w, http.StatusOK, couple)
}
