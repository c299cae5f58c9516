package crm

import (
	"context"
	"sync"
)

// MemoryStore keeps reservations in process memory. Used for local runs and tests.
type MemoryStore struct {
	mu     sync.Mutex
	nextID int
	items  map[int]Reservation
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1, items: make(map[int]Reservation)}
}

func (s *MemoryStore) Create(ctx context.Context, req CreateRequest) (Reservation, error) {
	if err := req.Validate(); err != nil {
		return Reservation{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := Reservation{
		ID:       s.nextID,
		Name:     req.Name,
		DateTime: req.DateTime,
		People:   req.People,
		Phone:    req.Phone,
		Notes:    req.Notes,
		Status:   StatusActive,
	}
	s.items[rec.ID] = rec
	s.nextID++
	return rec, nil
}

func (s *MemoryStore) Update(ctx context.Context, id int, req UpdateRequest) (Reservation, error) {
	if err := req.Validate(); err != nil {
		return Reservation{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.items[id]
	if !ok {
		return Reservation{}, ErrNotFound
	}
	rec = req.Apply(rec)
	s.items[id] = rec
	return rec, nil
}

func (s *MemoryStore) Cancel(ctx context.Context, id int) (Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.items[id]
	if !ok {
		return Reservation{}, ErrNotFound
	}
	rec.Status = StatusCancelled
	s.items[id] = rec
	return rec, nil
}

func (s *MemoryStore) Get(ctx context.Context, id int) (Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.items[id]
	if !ok {
		return Reservation{}, ErrNotFound
	}
	return rec, nil
}

var _ Store = (*MemoryStore)(nil)
