package dialogue

import "time"

// Entities are the reservation fields pulled out of one utterance.
// Zero values mean the field was not found.
type Entities struct {
	Name          string     `json:"name,omitempty"`
	DateTime      *time.Time `json:"datetime,omitempty"`
	People        int        `json:"people,omitempty"`
	ReservationID int        `json:"reservation_id,omitempty"`
}

func (e *Entities) HasName() bool          { return e != nil && e.Name != "" }
func (e *Entities) HasDateTime() bool      { return e != nil && e.DateTime != nil }
func (e *Entities) HasPeople() bool        { return e != nil && e.People > 0 }
func (e *Entities) HasReservationID() bool { return e != nil && e.ReservationID > 0 }

// IsEmpty reports whether no field resolved.
func (e *Entities) IsEmpty() bool {
	return !e.HasName() && !e.HasDateTime() && !e.HasPeople() && !e.HasReservationID()
}

// OrNil collapses an empty extraction to nil.
func (e *Entities) OrNil() *Entities {
	if e.IsEmpty() {
		return nil
	}
	return e
}
