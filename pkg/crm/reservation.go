package crm

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Status is the lifecycle state of a reservation record.
type Status string

const (
	StatusActive    Status = "active"
	StatusCancelled Status = "cancelled"
)

// ErrNotFound is returned when a reservation id does not exist.
var ErrNotFound = errors.New("reservation not found")

// Reservation is a stored booking.
type Reservation struct {
	ID       int       `json:"reservation_id"`
	Name     string    `json:"name"`
	DateTime time.Time `json:"datetime"`
	People   int       `json:"people"`
	Phone    string    `json:"phone,omitempty"`
	Notes    string    `json:"notes,omitempty"`
	Status   Status    `json:"status"`
}

// CreateRequest carries the fields for a new reservation. Name, DateTime and
// People are mandatory.
type CreateRequest struct {
	Name     string
	DateTime time.Time
	People   int
	Phone    string
	Notes    string
}

func (r CreateRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return errors.New("name is required")
	}
	if r.DateTime.IsZero() {
		return errors.New("datetime is required")
	}
	if r.People < 1 {
		return errors.New("people must be at least 1")
	}
	return nil
}

// UpdateRequest is a partial update; nil fields are left untouched.
type UpdateRequest struct {
	Name     *string
	DateTime *time.Time
	People   *int
	Phone    *string
	Notes    *string
}

func (r UpdateRequest) IsEmpty() bool {
	return r.Name == nil && r.DateTime == nil && r.People == nil && r.Phone == nil && r.Notes == nil
}

func (r UpdateRequest) Validate() error {
	if r.People != nil && *r.People < 1 {
		return errors.New("people must be at least 1")
	}
	return nil
}

// Store is the reservation datastore contract.
type Store interface {
	Create(ctx context.Context, req CreateRequest) (Reservation, error)
	Update(ctx context.Context, id int, req UpdateRequest) (Reservation, error)
	Cancel(ctx context.Context, id int) (Reservation, error)
	Get(ctx context.Context, id int) (Reservation, error)
}

// Apply folds a partial update into rec.
func (r UpdateRequest) Apply(rec Reservation) Reservation {
	if r.Name != nil {
		rec.Name = *r.Name
	}
	if r.DateTime != nil {
		rec.DateTime = *r.DateTime
	}
	if r.People != nil {
		rec.People = *r.People
	}
	if r.Phone != nil {
		rec.Phone = *r.Phone
	}
	if r.Notes != nil {
		rec.Notes = *r.Notes
	}
	return rec
}
