package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/harunnryd/tablecall/pkg/convlog"
	"github.com/harunnryd/tablecall/pkg/validate"
)

type callList struct {
	Calls  []convlog.Call `json:"calls"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

func (s *Server) handleListCalls(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := convlog.CallFilter{
		FromNumber: strings.TrimSpace(q.Get("from_number")),
		Status:     strings.ToLower(strings.TrimSpace(q.Get("status"))),
	}
	var err error
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "limit must be an integer")
		return
	}
	if filter.Offset, err = intParam(q.Get("offset")); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "offset must be an integer")
		return
	}
	if filter.FromNumber != "" {
		if phone, err := validate.Phone(filter.FromNumber); err == nil {
			filter.FromNumber = phone
		}
	}
	filter = filter.Normalize()

	calls, err := s.opts.Calls.ListCalls(r.Context(), filter)
	if err != nil {
		slog.ErrorContext(r.Context(), "admin_list_calls_failed", "error", err)
		writeDetail(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	if calls == nil {
		calls = []convlog.Call{}
	}
	writeJSON(w, http.StatusOK, callList{Calls: calls, Limit: filter.Limit, Offset: filter.Offset})
}

func (s *Server) handleGetCall(w http.ResponseWriter, r *http.Request) {
	callID := r.PathValue("call_id")
	detail, err := s.opts.Calls.GetCall(r.Context(), callID)
	if errors.Is(err, convlog.ErrCallNotFound) {
		writeDetail(w, http.StatusNotFound, "Call not found")
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "admin_get_call_failed", "error", err)
		writeDetail(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	if detail.Turns == nil {
		detail.Turns = []convlog.Turn{}
	}
	writeJSON(w, http.StatusOK, detail)
}

func intParam(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
