package dialogue

import (
	"encoding/json"

	"github.com/harunnryd/tablecall/pkg/crm"
	"github.com/harunnryd/tablecall/pkg/menu"
)

type ToolName string

const (
	ToolCRMCreate   ToolName = "crm_create"
	ToolCRMUpdate   ToolName = "crm_update"
	ToolCRMCancel   ToolName = "crm_cancel"
	ToolMenuContext ToolName = "menu_context"
)

// ToolError is a named precondition failure recorded instead of a tool call.
type ToolError string

const (
	ErrMissingRequiredFields ToolError = "missing_required_fields"
	ErrMissingReservationID  ToolError = "missing_reservation_id"
)

// ToolPayload is the closed set of tool result shapes.
type ToolPayload interface {
	isToolPayload()
}

// ReservationPayload carries the record returned by the reservation store.
type ReservationPayload struct {
	Record crm.Reservation
}

// MenuPayload carries menu search hits. An empty list is a valid result.
type MenuPayload struct {
	Items []menu.Item
}

func (ReservationPayload) isToolPayload() {}
func (MenuPayload) isToolPayload()        {}

func (p ReservationPayload) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Record)
}

func (p MenuPayload) MarshalJSON() ([]byte, error) {
	items := p.Items
	if items == nil {
		items = []menu.Item{}
	}
	return json.Marshal(map[string]any{"items": items})
}

// ToolResult records one tool invocation of the current turn. A failed
// precondition carries an Error and a nil Payload.
type ToolResult struct {
	Tool    ToolName
	Payload ToolPayload
	Error   ToolError
}

func (r ToolResult) Failed() bool { return r.Error != "" }

func (r ToolResult) MarshalJSON() ([]byte, error) {
	out := struct {
		Tool    ToolName `json:"tool"`
		Payload any      `json:"payload"`
		Error   *string  `json:"error"`
	}{Tool: r.Tool, Payload: r.Payload}
	if r.Payload == nil {
		out.Payload = struct{}{}
	}
	if r.Error != "" {
		s := string(r.Error)
		out.Error = &s
	}
	return json.Marshal(out)
}
