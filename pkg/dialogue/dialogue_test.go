package dialogue

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/harunnryd/tablecall/pkg/crm"
	"github.com/harunnryd/tablecall/pkg/menu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIntent(t *testing.T) {
	got, ok := ParseIntent("menu_question")
	assert.True(t, ok)
	assert.Equal(t, IntentMenuQuestion, got)

	_, ok = ParseIntent("order_pizza")
	assert.False(t, ok)
	assert.True(t, IntentCancelReservation.IsReservation())
	assert.False(t, IntentHoursInfo.IsReservation())
}

func TestEntitiesOrNil(t *testing.T) {
	var nilEntities *Entities
	assert.Nil(t, nilEntities.OrNil())
	assert.Nil(t, (&Entities{}).OrNil())

	e := &Entities{People: 3}
	assert.Same(t, e, e.OrNil())
	assert.False(t, e.HasName())
	assert.True(t, e.HasPeople())
}

func TestNeedsClarification(t *testing.T) {
	assert.False(t, AgentResponse{AnswerText: "ok"}.NeedsClarification())
	assert.True(t, AgentResponse{Actions: []Action{ActionClarify}}.NeedsClarification())
}

func TestToolResultJSON(t *testing.T) {
	failed := ToolResult{Tool: ToolCRMCreate, Error: ErrMissingRequiredFields}
	b, err := json.Marshal(failed)
	require.NoError(t, err)
	assert.JSONEq(t, `{"tool":"crm_create","payload":{},"error":"missing_required_fields"}`, string(b))

	when := time.Date(2025, 5, 10, 18, 30, 0, 0, time.UTC)
	ok := ToolResult{Tool: ToolCRMCancel, Payload: ReservationPayload{Record: crm.Reservation{
		ID: 7, Name: "Alice", DateTime: when, People: 2, Status: crm.StatusCancelled,
	}}}
	b, err = json.Marshal(ok)
	require.NoError(t, err)
	assert.JSONEq(t, `{"tool":"crm_cancel","error":null,"payload":{
		"reservation_id":7,"name":"Alice","datetime":"2025-05-10T18:30:00Z","people":2,"status":"cancelled"}}`, string(b))

	b, err = json.Marshal(ToolResult{Tool: ToolMenuContext, Payload: MenuPayload{}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"tool":"menu_context","payload":{"items":[]},"error":null}`, string(b))

	b, err = json.Marshal(ToolResult{Tool: ToolMenuContext, Payload: MenuPayload{Items: []menu.Item{{Name: "Soup", Price: 4}}}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"tool":"menu_context","payload":{"items":[{"name":"Soup","price":4}]},"error":null}`, string(b))
}

func TestCallStateHistory(t *testing.T) {
	s := NewCallState("call-1", "")
	_, ok := s.LastUserEntry()
	assert.False(t, ok)
	assert.Empty(t, s.LastUserMessage())

	s.AddHistory(RoleUser, "hi")
	s.AddHistory(RoleAssistant, "hello")
	s.AddHistory(RoleUser, "book a table")
	s.AddHistory(RoleAssistant, "for how many?")

	last, ok := s.LastUserEntry()
	require.True(t, ok)
	assert.Equal(t, "book a table", last.Text)
	assert.Len(t, s.UserMessages(), 2)
	assert.Equal(t, "book a table", s.LastUserMessage())

	s.Submit("for two")
	assert.Equal(t, "for two", s.LastUserMessage())
}

func TestPendingUserIndexes(t *testing.T) {
	s := NewCallState("call-1", "")
	assert.Empty(t, s.PendingUserIndexes())

	s.AddHistory(RoleUser, "book a table")
	s.AddHistory(RoleAssistant, "for how many?")
	s.AddHistory(RoleUser, "hours?")
	s.AddHistory(RoleAssistant, "10 to 22")
	assert.Equal(t, []int{0, 2}, s.PendingUserIndexes())

	s.Answered = 3
	s.AddHistory(RoleUser, "menu?")
	assert.Equal(t, []int{4}, s.PendingUserIndexes())

	s.Answered = 99
	assert.Empty(t, s.PendingUserIndexes())
}
