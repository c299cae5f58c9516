package tools

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/harunnryd/tablecall/pkg/crm"
	"github.com/harunnryd/tablecall/pkg/dialogue"
	"github.com/harunnryd/tablecall/pkg/errorsx"
	"github.com/harunnryd/tablecall/pkg/menu"
	"github.com/harunnryd/tablecall/pkg/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStore struct {
	creates []crm.CreateRequest
	updates map[int]crm.UpdateRequest
	cancels []int
	err     error
}

func (s *stubStore) Create(ctx context.Context, req crm.CreateRequest) (crm.Reservation, error) {
	s.creates = append(s.creates, req)
	if s.err != nil {
		return crm.Reservation{}, s.err
	}
	return crm.Reservation{ID: 1, Name: req.Name, DateTime: req.DateTime, People: req.People, Status: crm.StatusActive}, nil
}

func (s *stubStore) Update(ctx context.Context, id int, req crm.UpdateRequest) (crm.Reservation, error) {
	if s.updates == nil {
		s.updates = map[int]crm.UpdateRequest{}
	}
	s.updates[id] = req
	if s.err != nil {
		return crm.Reservation{}, s.err
	}
	return crm.Reservation{ID: id, Status: crm.StatusActive}, nil
}

func (s *stubStore) Cancel(ctx context.Context, id int) (crm.Reservation, error) {
	s.cancels = append(s.cancels, id)
	if s.err != nil {
		return crm.Reservation{}, s.err
	}
	return crm.Reservation{ID: id, Status: crm.StatusCancelled}, nil
}

type stubMenu struct {
	items   []menu.Item
	err     error
	queries []string
	langs   []string
}

func (m *stubMenu) Search(ctx context.Context, query, language string) ([]menu.Item, error) {
	m.queries = append(m.queries, query)
	m.langs = append(m.langs, language)
	return m.items, m.err
}

func stateWith(intent dialogue.Intent, e *dialogue.Entities) *dialogue.CallState {
	s := dialogue.NewCallState("call-1", "en")
	s.Intent = intent
	s.Entities = e
	return s
}

func when() *time.Time {
	t := time.Date(2025, 5, 10, 18, 30, 0, 0, time.UTC)
	return &t
}

func TestCreateNeverCallsStoreWithMissingFields(t *testing.T) {
	cases := []*dialogue.Entities{
		nil,
		{Name: "Alice", DateTime: when()},
		{Name: "Alice", People: 2},
		{DateTime: when(), People: 2},
		{ReservationID: 5},
	}
	for _, e := range cases {
		store := &stubStore{}
		state := stateWith(dialogue.IntentCreateReservation, e)

		require.NoError(t, NewDispatcher(store, &stubMenu{}, nil).Dispatch(context.Background(), state))
		assert.Empty(t, store.creates)
		require.Len(t, state.ToolResults, 1)
		assert.Equal(t, dialogue.ToolCRMCreate, state.ToolResults[0].Tool)
		assert.Equal(t, dialogue.ErrMissingRequiredFields, state.ToolResults[0].Error)
		assert.Nil(t, state.ToolResults[0].Payload)
	}
}

func TestCreateWithAllFields(t *testing.T) {
	store := &stubStore{}
	obs := metrics.NewMemoryObserver()
	state := stateWith(dialogue.IntentCreateReservation, &dialogue.Entities{Name: "Alice", DateTime: when(), People: 2})

	require.NoError(t, NewDispatcher(store, &stubMenu{}, obs).Dispatch(context.Background(), state))
	require.Len(t, store.creates, 1)
	assert.Equal(t, crm.CreateRequest{Name: "Alice", DateTime: *when(), People: 2}, store.creates[0])
	require.Len(t, state.ToolResults, 1)
	payload, ok := state.ToolResults[0].Payload.(dialogue.ReservationPayload)
	require.True(t, ok)
	assert.Equal(t, 1, payload.Record.ID)
	assert.Equal(t, "ok", obs.Events[0].Tags["outcome"])
}

func TestUpdateAndCancelRequireID(t *testing.T) {
	for _, in := range []dialogue.Intent{dialogue.IntentUpdateReservation, dialogue.IntentCancelReservation} {
		store := &stubStore{}
		state := stateWith(in, &dialogue.Entities{People: 4})
		require.NoError(t, NewDispatcher(store, &stubMenu{}, nil).Dispatch(context.Background(), state))
		assert.Empty(t, store.updates)
		assert.Empty(t, store.cancels)
		require.Len(t, state.ToolResults, 1)
		assert.Equal(t, dialogue.ErrMissingReservationID, state.ToolResults[0].Error)
	}
}

func TestUpdateSendsOnlyMentionedFields(t *testing.T) {
	store := &stubStore{}
	state := stateWith(dialogue.IntentUpdateReservation, &dialogue.Entities{ReservationID: 12, People: 5})

	require.NoError(t, NewDispatcher(store, &stubMenu{}, nil).Dispatch(context.Background(), state))
	req := store.updates[12]
	require.NotNil(t, req.People)
	assert.Equal(t, 5, *req.People)
	assert.Nil(t, req.Name)
	assert.Nil(t, req.DateTime)
	assert.Equal(t, dialogue.ToolCRMUpdate, state.ToolResults[0].Tool)
}

func TestCancelCallsStore(t *testing.T) {
	store := &stubStore{}
	state := stateWith(dialogue.IntentCancelReservation, &dialogue.Entities{ReservationID: 123})

	require.NoError(t, NewDispatcher(store, &stubMenu{}, nil).Dispatch(context.Background(), state))
	assert.Equal(t, []int{123}, store.cancels)
	payload := state.ToolResults[0].Payload.(dialogue.ReservationPayload)
	assert.Equal(t, crm.StatusCancelled, payload.Record.Status)
}

func TestMenuAlwaysSearches(t *testing.T) {
	search := &stubMenu{}
	state := stateWith(dialogue.IntentMenuQuestion, nil)
	state.Language = ""
	state.Submit("Can I see the menu?")

	require.NoError(t, NewDispatcher(&stubStore{}, search, nil).Dispatch(context.Background(), state))
	assert.Equal(t, []string{"Can I see the menu?"}, search.queries)
	assert.Equal(t, []string{"en"}, search.langs)
	require.Len(t, state.ToolResults, 1)
	assert.Equal(t, dialogue.MenuPayload{}, state.ToolResults[0].Payload)
	assert.False(t, state.ToolResults[0].Failed())
}

func TestOtherIntentsDoNothing(t *testing.T) {
	search := &stubMenu{}
	store := &stubStore{}
	for _, in := range []dialogue.Intent{dialogue.IntentHoursInfo, dialogue.IntentGeneric} {
		state := stateWith(in, &dialogue.Entities{ReservationID: 1, Name: "A", People: 2, DateTime: when()})
		require.NoError(t, NewDispatcher(store, search, nil).Dispatch(context.Background(), state))
		assert.Empty(t, state.ToolResults)
	}
	assert.Empty(t, search.queries)
	assert.Empty(t, store.creates)
}

func TestCollaboratorFailuresPropagate(t *testing.T) {
	boom := errors.New("db down")
	state := stateWith(dialogue.IntentCancelReservation, &dialogue.Entities{ReservationID: 9})
	err := NewDispatcher(&stubStore{err: boom}, &stubMenu{}, nil).Dispatch(context.Background(), state)
	require.ErrorIs(t, err, boom)
	assert.True(t, errorsx.HasReason(err, errorsx.ReasonCRMCancel))
	assert.Empty(t, state.ToolResults)

	state = stateWith(dialogue.IntentMenuQuestion, nil)
	err = NewDispatcher(&stubStore{}, &stubMenu{err: boom}, nil).Dispatch(context.Background(), state)
	assert.True(t, errorsx.HasReason(err, errorsx.ReasonMenuSearch))
}
