package handlers

import (
	"fmt"
	"net/http"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/gorilla/securecookie"

	"github.com/krishanraja/try-ritual-sub002/internal/middleware"
	"github.com/krishanraja/try-ritual-sub002/internal/repository"
	"github.com/krishanraja/try-ritual-sub002/internal/synth"
)

const calendarTokenName = "ritual-calendar"

// CalendarHandler serves a read-only iCal feed of a couple's completed
// cycles so rituals show up in the partners' calendar apps. The feed URL
// embeds a signed couple id instead of a bearer token, since calendar apps
// can only fetch plain URLs.
type CalendarHandler struct {
	cycleRepo  repository.CycleRepository
	coupleRepo repository.CoupleRepository
	codec      *securecookie.SecureCookie
	baseURL    string
}

func NewCalendarHandler(
	cycleRepo repository.CycleRepository,
	coupleRepo repository.CoupleRepository,
	signingSecret string,
	baseURL string,
) *CalendarHandler {
	codec := securecookie.New([]byte(signingSecret), nil)
	codec.MaxAge(0)
	return &CalendarHandler{
		cycleRepo:  cycleRepo,
		coupleRepo: coupleRepo,
		codec:      codec,
		baseURL:    baseURL,
	}
}

// Link mints the caller's feed URL.
func (handler *CalendarHandler) Link(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := middleware.GetPartner(ctx)

	couple, err := handler.coupleRepo.FindByPartnerID(ctx, caller.ID)
	if err != nil {
		writeError(w, http.StatusNotFound, "no couple found")
		return
	}

	token, err := handler.codec.Encode(calendarTokenName, couple.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not create feed link")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"url": fmt.Sprintf("%s/calendar?token=%s", handler.baseURL, token),
	})
}

func (handler *CalendarHandler) Feed(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var coupleID string
	if err := handler.codec.Decode(calendarTokenName, token, &coupleID); err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	cycles, err := handler.cycleRepo.FindByCoupleID(r.Context(), coupleID)
	if err != nil {
		http.Error(w, "Error", http.StatusInternalServerError)
		return
	}

	calendar := ics.NewCalendar()
	calendar.SetMethod(ics.MethodPublish)
	calendar.SetProductId("-//Ritual//Ritual//EN")

	for _, cycle := range cycles {
		if cycle.SynthesizedOutput == nil {
			continue
		}
		suggestions, err := synth.ParseSuggestions(*cycle.SynthesizedOutput)
		if err != nil || len(suggestions) == 0 {
			continue
		}

		weekStart, err := time.Parse("2006-01-02", cycle.WeekStartDate)
		if err != nil {
			continue
		}
		// The headline ritual lands on the Saturday of its week.
		saturday := weekStart.AddDate(0, 0, 5)

		event := calendar.AddEvent(fmt.Sprintf("cycle-%s@ritual", cycle.ID))
		event.SetSummary(suggestions[0].Title)
		event.SetDescription(suggestions[0].Description)
		event.SetAllDayStartAt(saturday)
		event.SetAllDayEndAt(saturday.AddDate(0, 0, 1))
		if cycle.CompletedAt != nil {
			event.SetDtStampTime(cycle.CompletedAt.UTC())
		} else {
			event.SetDtStampTime(cycle.CreatedAt.UTC())
		}
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename=ritual.ics")
	w.Write([]byte(calendar.Serialize()))
}
