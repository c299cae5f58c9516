package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/harunnryd/tablecall/pkg/crm"
)

const reservationColumns = "id, name, reservation_at, people, phone, notes, status"

// ReservationStore implements crm.Store on top of DB.
type ReservationStore struct {
	db *DB
}

func NewReservationStore(db *DB) *ReservationStore {
	return &ReservationStore{db: db}
}

func (s *ReservationStore) Create(ctx context.Context, req crm.CreateRequest) (crm.Reservation, error) {
	if err := req.Validate(); err != nil {
		return crm.Reservation{}, err
	}
	now := s.db.timestamp()
	row := s.db.sql.QueryRowContext(ctx, s.db.rebind(`
		INSERT INTO reservations (name, reservation_at, people, phone, notes, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING `+reservationColumns),
		req.Name, req.DateTime.UTC(), req.People, req.Phone, req.Notes, string(crm.StatusActive), now, now,
	)
	rec, err := scanReservation(row)
	if err != nil {
		return crm.Reservation{}, fmt.Errorf("insert reservation: %w", err)
	}
	return rec, nil
}

// Update applies the mentioned fields; an empty update returns the stored record.
func (s *ReservationStore) Update(ctx context.Context, id int, req crm.UpdateRequest) (crm.Reservation, error) {
	if err := req.Validate(); err != nil {
		return crm.Reservation{}, err
	}
	tx, err := s.db.sql.BeginTx(ctx, nil)
	if err != nil {
		return crm.Reservation{}, err
	}
	defer func() { _ = tx.Rollback() }()

	current, err := scanReservation(tx.QueryRowContext(ctx, s.db.rebind(
		"SELECT "+reservationColumns+" FROM reservations WHERE id = ?"), id))
	if err != nil {
		return crm.Reservation{}, err
	}
	if req.IsEmpty() {
		return current, tx.Commit()
	}

	next := req.Apply(current)
	next.DateTime = next.DateTime.UTC()
	_, err = tx.ExecContext(ctx, s.db.rebind(`
		UPDATE reservations
		SET name = ?, reservation_at = ?, people = ?, phone = ?, notes = ?, updated_at = ?
		WHERE id = ?`),
		next.Name, next.DateTime, next.People, next.Phone, next.Notes, s.db.timestamp(), id,
	)
	if err != nil {
		return crm.Reservation{}, fmt.Errorf("update reservation %d: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return crm.Reservation{}, err
	}
	return next, nil
}

func (s *ReservationStore) Cancel(ctx context.Context, id int) (crm.Reservation, error) {
	row := s.db.sql.QueryRowContext(ctx, s.db.rebind(`
		UPDATE reservations SET status = ?, updated_at = ?
		WHERE id = ?
		RETURNING `+reservationColumns),
		string(crm.StatusCancelled), s.db.timestamp(), id,
	)
	return scanReservation(row)
}

func (s *ReservationStore) Get(ctx context.Context, id int) (crm.Reservation, error) {
	row := s.db.sql.QueryRowContext(ctx, s.db.rebind(
		"SELECT "+reservationColumns+" FROM reservations WHERE id = ?"), id)
	return scanReservation(row)
}

func scanReservation(row rowScanner) (crm.Reservation, error) {
	var (
		rec    crm.Reservation
		id     int64
		at     dbTime
		status string
	)
	err := row.Scan(&id, &rec.Name, &at, &rec.People, &rec.Phone, &rec.Notes, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return crm.Reservation{}, crm.ErrNotFound
	}
	if err != nil {
		return crm.Reservation{}, err
	}
	rec.ID = int(id)
	rec.DateTime = at.Time
	rec.Status = crm.Status(status)
	return rec, nil
}

var _ crm.Store = (*ReservationStore)(nil)
