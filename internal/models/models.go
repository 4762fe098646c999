package models

import "time"

type PartnerSlot int

const (
	PartnerOne PartnerSlot = 1
	PartnerTwo PartnerSlot = 2
)

// TriggerStatus is the closed set of outcomes a synthesis trigger can report.
type TriggerStatus string

const (
	TriggerReady      TriggerStatus = "ready"
	TriggerWaiting    TriggerStatus = "waiting"
	TriggerGenerating TriggerStatus = "generating"
	TriggerFailed     TriggerStatus = "failed"
	TriggerError      TriggerStatus = "error"
)

type Partner struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

type Couple struct {
	ID           string    `json:"id"`
	PartnerOneID string    `json:"partner_one_id"`
	PartnerTwoID string    `json:"partner_two_id"`
	City         string    `json:"city"`
	Timezone     string    `json:"timezone"`
	CreatedAt    time.Time `json:"created_at"`
}

// WeeklyCycle is one couple's planning unit for one week. GeneratedAt doubles
// as the synthesis lock: non-null means synthesis is claimed or complete.
type WeeklyCycle struct {
	ID            string `json:"id"`
	CoupleID      string `json:"couple_id"`
	WeekStartDate string `json:"week_start_date"`

	PartnerOneInput *string `json:"partner_one_input,omitempty"`
	PartnerTwoInput *string `json:"partner_two_input,omitempty"`

	GeneratedAt       *time.Time `json:"generated_at,omitempty"`
	SynthesizedOutput *string    `json:"synthesized_output,omitempty"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`

	NudgedAt   *time.Time `json:"nudged_at,omitempty"`
	NudgeCount int        `json:"nudge_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (cycle WeeklyCycle) InputFor(slot PartnerSlot) *string {
	if slot == PartnerOne {
		return cycle.PartnerOneInput
	}
	return cycle.PartnerTwoInput
}

func (cycle WeeklyCycle) BothInputsPresent() bool {
	return cycle.PartnerOneInput != nil && cycle.PartnerTwoInput != nil
}

type Suggestion struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	TimeEstimate string `json:"timeEstimate"`
	BudgetBand   string `json:"budgetBand"`
	Category     string `json:"category,omitempty"`
}

type PushSubscription struct {
	ID        string    `json:"id"`
	PartnerID string    `json:"partner_id"`
	Endpoint  string    `json:"endpoint"`
	CreatedAt time.Time `json:"created_at"`
}
