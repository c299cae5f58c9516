package convlog

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

type MemoryStore struct {
	mu    sync.Mutex
	now   func() time.Time
	calls map[string]*Call
	turns map[string][]Turn
	audio []AudioFile
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:   time.Now,
		calls: make(map[string]*Call),
		turns: make(map[string][]Turn),
	}
}

func (s *MemoryStore) RecordTurn(ctx context.Context, turn Turn) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	call := s.upsertCall(turn.CallID)
	if turn.Language != "" {
		call.Language = turn.Language
	}
	if turn.TurnID == 0 {
		turn.TurnID = s.nextTurnID(turn.CallID)
	}
	for _, t := range s.turns[turn.CallID] {
		if t.TurnID == turn.TurnID {
			return 0, fmt.Errorf("turn %d already recorded for call %s", turn.TurnID, turn.CallID)
		}
	}
	turn.CreatedAt = s.now()
	s.turns[turn.CallID] = append(s.turns[turn.CallID], turn)
	return turn.TurnID, nil
}

func (s *MemoryStore) NextTurnID(ctx context.Context, callID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextTurnID(callID), nil
}

func (s *MemoryStore) RecordAudio(ctx context.Context, audio AudioFile) error {
	if !audio.Kind.Valid() {
		return fmt.Errorf("invalid audio kind %q", audio.Kind)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	found := false
	for _, t := range s.turns[audio.CallID] {
		if t.TurnID == audio.TurnID {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("turn %d not recorded for call %s", audio.TurnID, audio.CallID)
	}
	s.audio = append(s.audio, audio)
	return nil
}

func (s *MemoryStore) UpdateCall(ctx context.Context, callID string, upd CallUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	call := s.upsertCall(callID)
	if upd.FromNumber != "" {
		call.FromNumber = upd.FromNumber
	}
	if upd.ToNumber != "" {
		call.ToNumber = upd.ToNumber
	}
	if upd.Status != "" {
		call.Status = upd.Status
	}
	if upd.Ended {
		ended := s.now()
		call.EndedAt = &ended
	}
	return nil
}

func (s *MemoryStore) GetCall(ctx context.Context, callID string) (CallDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	call, ok := s.calls[callID]
	if !ok {
		return CallDetail{}, ErrCallNotFound
	}
	turns := append([]Turn(nil), s.turns[callID]...)
	sort.Slice(turns, func(i, j int) bool { return turns[i].TurnID < turns[j].TurnID })
	return CallDetail{Call: *call, Turns: turns, Transcript: Transcript(turns)}, nil
}

func (s *MemoryStore) ListCalls(ctx context.Context, filter CallFilter) ([]Call, error) {
	filter = filter.Normalize()
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Call
	for _, c := range s.calls {
		if filter.FromNumber != "" && c.FromNumber != filter.FromNumber {
			continue
		}
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.After(out[j].StartedAt)
		}
		return out[i].CallID < out[j].CallID
	})
	if filter.Offset >= len(out) {
		return []Call{}, nil
	}
	out = out[filter.Offset:]
	if len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// AudioFiles returns the recorded audio references for a call.
func (s *MemoryStore) AudioFiles(callID string) []AudioFile {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []AudioFile
	for _, a := range s.audio {
		if a.CallID == callID {
			out = append(out, a)
		}
	}
	return out
}

func (s *MemoryStore) upsertCall(callID string) *Call {
	call, ok := s.calls[callID]
	if !ok {
		call = &Call{CallID: callID, StartedAt: s.now()}
		s.calls[callID] = call
	}
	return call
}

func (s *MemoryStore) nextTurnID(callID string) int {
	next := 1
	for _, t := range s.turns[callID] {
		if t.TurnID >= next {
			next = t.TurnID + 1
		}
	}
	return next
}

var _ Store = (*MemoryStore)(nil)
