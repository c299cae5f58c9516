// Package tools runs the reservation and menu capabilities an intent calls for.
package tools

import (
	"context"
	"time"

	"github.com/harunnryd/tablecall/pkg/crm"
	"github.com/harunnryd/tablecall/pkg/dialogue"
	"github.com/harunnryd/tablecall/pkg/errorsx"
	"github.com/harunnryd/tablecall/pkg/menu"
	"github.com/harunnryd/tablecall/pkg/metrics"
)

// ReservationStore is the part of the reservation datastore the dispatcher uses.
type ReservationStore interface {
	Create(ctx context.Context, req crm.CreateRequest) (crm.Reservation, error)
	Update(ctx context.Context, id int, req crm.UpdateRequest) (crm.Reservation, error)
	Cancel(ctx context.Context, id int) (crm.Reservation, error)
}

type Dispatcher struct {
	store ReservationStore
	menu  menu.Searcher
	obs   metrics.Observer
}

func NewDispatcher(store ReservationStore, searcher menu.Searcher, obs metrics.Observer) *Dispatcher {
	if obs == nil {
		obs = metrics.NoopObserver{}
	}
	return &Dispatcher{store: store, menu: searcher, obs: obs}
}

// Dispatch appends this turn's tool results to state. Missing entities are
// recorded as named tool errors; collaborator failures are returned.
func (d *Dispatcher) Dispatch(ctx context.Context, state *dialogue.CallState) error {
	switch state.Intent {
	case dialogue.IntentCreateReservation:
		return d.create(ctx, state)
	case dialogue.IntentUpdateReservation:
		return d.update(ctx, state)
	case dialogue.IntentCancelReservation:
		return d.cancel(ctx, state)
	case dialogue.IntentMenuQuestion:
		return d.searchMenu(ctx, state)
	}
	return nil
}

func (d *Dispatcher) create(ctx context.Context, state *dialogue.CallState) error {
	e := state.Entities
	if !e.HasName() || !e.HasDateTime() || !e.HasPeople() {
		d.fail(state, dialogue.ToolCRMCreate, dialogue.ErrMissingRequiredFields)
		return nil
	}
	rec, err := d.store.Create(ctx, crm.CreateRequest{
		Name:     e.Name,
		DateTime: *e.DateTime,
		People:   e.People,
	})
	if err != nil {
		d.record(dialogue.ToolCRMCreate, "error")
		return errorsx.Wrap(err, errorsx.ReasonCRMCreate)
	}
	d.ok(state, dialogue.ToolCRMCreate, dialogue.ReservationPayload{Record: rec})
	return nil
}

func (d *Dispatcher) update(ctx context.Context, state *dialogue.CallState) error {
	e := state.Entities
	if !e.HasReservationID() {
		d.fail(state, dialogue.ToolCRMUpdate, dialogue.ErrMissingReservationID)
		return nil
	}
	rec, err := d.store.Update(ctx, e.ReservationID, updateFrom(e))
	if err != nil {
		d.record(dialogue.ToolCRMUpdate, "error")
		return errorsx.Wrap(err, errorsx.ReasonCRMUpdate)
	}
	d.ok(state, dialogue.ToolCRMUpdate, dialogue.ReservationPayload{Record: rec})
	return nil
}

func (d *Dispatcher) cancel(ctx context.Context, state *dialogue.CallState) error {
	e := state.Entities
	if !e.HasReservationID() {
		d.fail(state, dialogue.ToolCRMCancel, dialogue.ErrMissingReservationID)
		return nil
	}
	rec, err := d.store.Cancel(ctx, e.ReservationID)
	if err != nil {
		d.record(dialogue.ToolCRMCancel, "error")
		return errorsx.Wrap(err, errorsx.ReasonCRMCancel)
	}
	d.ok(state, dialogue.ToolCRMCancel, dialogue.ReservationPayload{Record: rec})
	return nil
}

func (d *Dispatcher) searchMenu(ctx context.Context, state *dialogue.CallState) error {
	lang := state.Language
	if lang == "" {
		lang = "en"
	}
	items, err := d.menu.Search(ctx, state.LastUserMessage(), lang)
	if err != nil {
		d.record(dialogue.ToolMenuContext, "error")
		return errorsx.Wrap(err, errorsx.ReasonMenuSearch)
	}
	d.ok(state, dialogue.ToolMenuContext, dialogue.MenuPayload{Items: items})
	return nil
}

// updateFrom copies only the fields the caller actually mentioned.
func updateFrom(e *dialogue.Entities) crm.UpdateRequest {
	var req crm.UpdateRequest
	if e.HasName() {
		name := e.Name
		req.Name = &name
	}
	if e.HasDateTime() {
		dt := *e.DateTime
		req.DateTime = &dt
	}
	if e.HasPeople() {
		people := e.People
		req.People = &people
	}
	return req
}

func (d *Dispatcher) ok(state *dialogue.CallState, tool dialogue.ToolName, payload dialogue.ToolPayload) {
	state.ToolResults = append(state.ToolResults, dialogue.ToolResult{Tool: tool, Payload: payload})
	d.record(tool, "ok")
}

func (d *Dispatcher) fail(state *dialogue.CallState, tool dialogue.ToolName, code dialogue.ToolError) {
	state.ToolResults = append(state.ToolResults, dialogue.ToolResult{Tool: tool, Error: code})
	d.record(tool, string(code))
}

func (d *Dispatcher) record(tool dialogue.ToolName, outcome string) {
	d.obs.RecordEvent(metrics.MetricsEvent{
		Name:  metrics.EventToolDispatched,
		Time:  time.Now(),
		Value: 1,
		Tags:  map[string]string{"tool": string(tool), "outcome": outcome},
	})
}
