package dialogue

// Intent is the classified purpose of one utterance.
type Intent string

const (
	IntentCreateReservation Intent = "create_reservation"
	IntentUpdateReservation Intent = "update_reservation"
	IntentCancelReservation Intent = "cancel_reservation"
	IntentMenuQuestion      Intent = "menu_question"
	IntentHoursInfo         Intent = "hours_info"
	IntentGeneric           Intent = "generic"
)

// Intents lists every intent in declaration order.
var Intents = []Intent{
	IntentCreateReservation,
	IntentUpdateReservation,
	IntentCancelReservation,
	IntentMenuQuestion,
	IntentHoursInfo,
	IntentGeneric,
}

func (i Intent) Valid() bool {
	for _, known := range Intents {
		if i == known {
			return true
		}
	}
	return false
}

// ParseIntent returns the intent for s and false when s is not a known intent.
func ParseIntent(s string) (Intent, bool) {
	i := Intent(s)
	return i, i.Valid()
}

// IsReservation reports whether the intent acts on the reservation store.
func (i Intent) IsReservation() bool {
	switch i {
	case IntentCreateReservation, IntentUpdateReservation, IntentCancelReservation:
		return true
	}
	return false
}

// IntentExtraction is the per-utterance classifier output.
type IntentExtraction struct {
	Intent   Intent    `json:"intent"`
	Entities *Entities `json:"entities"`
	Language string    `json:"language"`
}
