package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/harunnryd/tablecall/pkg/convlog"
	"github.com/harunnryd/tablecall/pkg/errorsx"
)

// ConversationStore implements convlog.Store on top of DB.
type ConversationStore struct {
	db *DB
}

func NewConversationStore(db *DB) *ConversationStore {
	return &ConversationStore{db: db}
}

const nextTurnQuery = "SELECT COALESCE(MAX(turn_id), 0) + 1 FROM turns WHERE call_id = ?"

// RecordTurn upserts the call row, keeping a known language when the turn
// has none, and inserts the turn under the given or next free id.
func (s *ConversationStore) RecordTurn(ctx context.Context, turn convlog.Turn) (int, error) {
	tx, err := s.db.sql.BeginTx(ctx, nil)
	if err != nil {
		return 0, errorsx.Wrap(err, errorsx.ReasonStorage)
	}
	defer func() { _ = tx.Rollback() }()

	now := s.db.timestamp()
	_, err = tx.ExecContext(ctx, s.db.rebind(`
		INSERT INTO calls (call_id, started_at, language)
		VALUES (?, ?, ?)
		ON CONFLICT (call_id)
		DO UPDATE SET language = COALESCE(excluded.language, calls.language)`),
		turn.CallID, now, nullString(turn.Language),
	)
	if err != nil {
		return 0, errorsx.Wrap(fmt.Errorf("upsert call %s: %w", turn.CallID, err), errorsx.ReasonStorage)
	}

	turnID := turn.TurnID
	if turnID == 0 {
		if err := tx.QueryRowContext(ctx, s.db.rebind(nextTurnQuery), turn.CallID).Scan(&turnID); err != nil {
			return 0, errorsx.Wrap(err, errorsx.ReasonStorage)
		}
	}

	var toolCalls sql.NullString
	if len(turn.ToolCalls) > 0 {
		toolCalls = sql.NullString{String: string(turn.ToolCalls), Valid: true}
	}
	_, err = tx.ExecContext(ctx, s.db.rebind(`
		INSERT INTO turns (call_id, turn_id, user_text, intent, tool_calls, assistant_text, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		turn.CallID, turnID, nullString(turn.UserText), nullString(turn.Intent), toolCalls,
		nullString(turn.AssistantText), now,
	)
	if err != nil {
		return 0, errorsx.Wrap(fmt.Errorf("insert turn %s/%d: %w", turn.CallID, turnID, err), errorsx.ReasonStorage)
	}
	if err := tx.Commit(); err != nil {
		return 0, errorsx.Wrap(err, errorsx.ReasonStorage)
	}
	return turnID, nil
}

func (s *ConversationStore) NextTurnID(ctx context.Context, callID string) (int, error) {
	var next int
	if err := s.db.sql.QueryRowContext(ctx, s.db.rebind(nextTurnQuery), callID).Scan(&next); err != nil {
		return 0, errorsx.Wrap(err, errorsx.ReasonStorage)
	}
	return next, nil
}

func (s *ConversationStore) RecordAudio(ctx context.Context, audio convlog.AudioFile) error {
	if !audio.Kind.Valid() {
		return fmt.Errorf("invalid audio kind %q", audio.Kind)
	}
	_, err := s.db.sql.ExecContext(ctx, s.db.rebind(`
		INSERT INTO audio_files (call_id, turn_id, path, kind, created_at)
		VALUES (?, ?, ?, ?, ?)`),
		audio.CallID, audio.TurnID, audio.Path, string(audio.Kind), s.db.timestamp(),
	)
	return errorsx.Wrap(err, errorsx.ReasonStorage)
}

func (s *ConversationStore) UpdateCall(ctx context.Context, callID string, upd convlog.CallUpdate) error {
	now := s.db.timestamp()
	var ended sql.NullTime
	if upd.Ended {
		ended = sql.NullTime{Time: now, Valid: true}
	}
	_, err := s.db.sql.ExecContext(ctx, s.db.rebind(`
		INSERT INTO calls (call_id, started_at, from_number, to_number, status, ended_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (call_id) DO UPDATE SET
			from_number = COALESCE(excluded.from_number, calls.from_number),
			to_number   = COALESCE(excluded.to_number, calls.to_number),
			status      = COALESCE(excluded.status, calls.status),
			ended_at    = COALESCE(excluded.ended_at, calls.ended_at)`),
		callID, now, nullString(upd.FromNumber), nullString(upd.ToNumber), nullString(upd.Status), ended,
	)
	if err != nil {
		return errorsx.Wrap(fmt.Errorf("update call %s: %w", callID, err), errorsx.ReasonStorage)
	}
	return nil
}

const callColumns = "call_id, started_at, ended_at, language, from_number, to_number, status"

func (s *ConversationStore) GetCall(ctx context.Context, callID string) (convlog.CallDetail, error) {
	call, err := scanCall(s.db.sql.QueryRowContext(ctx, s.db.rebind(
		"SELECT "+callColumns+" FROM calls WHERE call_id = ?"), callID))
	if errors.Is(err, sql.ErrNoRows) {
		return convlog.CallDetail{}, convlog.ErrCallNotFound
	}
	if err != nil {
		return convlog.CallDetail{}, errorsx.Wrap(err, errorsx.ReasonStorage)
	}

	rows, err := s.db.sql.QueryContext(ctx, s.db.rebind(`
		SELECT turn_id, user_text, intent, tool_calls, assistant_text, created_at
		FROM turns WHERE call_id = ? ORDER BY turn_id`), callID)
	if err != nil {
		return convlog.CallDetail{}, errorsx.Wrap(err, errorsx.ReasonStorage)
	}
	defer rows.Close()

	turns := []convlog.Turn{}
	for rows.Next() {
		t := convlog.Turn{CallID: callID, Language: call.Language}
		var (
			userText, intent, tools, assistant sql.NullString
			created                            dbTime
		)
		if err := rows.Scan(&t.TurnID, &userText, &intent, &tools, &assistant, &created); err != nil {
			return convlog.CallDetail{}, errorsx.Wrap(err, errorsx.ReasonStorage)
		}
		t.UserText = userText.String
		t.Intent = intent.String
		t.AssistantText = assistant.String
		t.CreatedAt = created.Time
		if tools.Valid {
			t.ToolCalls = json.RawMessage(tools.String)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return convlog.CallDetail{}, errorsx.Wrap(err, errorsx.ReasonStorage)
	}
	return convlog.CallDetail{Call: call, Turns: turns, Transcript: convlog.Transcript(turns)}, nil
}

func (s *ConversationStore) ListCalls(ctx context.Context, filter convlog.CallFilter) ([]convlog.Call, error) {
	filter = filter.Normalize()
	var (
		where []string
		args  []any
	)
	if filter.FromNumber != "" {
		where = append(where, "from_number = ?")
		args = append(args, filter.FromNumber)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}
	query := "SELECT " + callColumns + " FROM calls"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY started_at DESC, call_id LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	rows, err := s.db.sql.QueryContext(ctx, s.db.rebind(query), args...)
	if err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonStorage)
	}
	defer rows.Close()

	calls := []convlog.Call{}
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, errorsx.Wrap(err, errorsx.ReasonStorage)
		}
		calls = append(calls, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonStorage)
	}
	return calls, nil
}

func scanCall(row rowScanner) (convlog.Call, error) {
	var (
		c                          convlog.Call
		started, ended             dbTime
		language, from, to, status sql.NullString
	)
	if err := row.Scan(&c.CallID, &started, &ended, &language, &from, &to, &status); err != nil {
		return convlog.Call{}, err
	}
	c.StartedAt = started.Time
	if ended.Valid {
		c.EndedAt = &ended.Time
	}
	c.Language = language.String
	c.FromNumber = from.String
	c.ToNumber = to.String
	c.Status = status.String
	return c, nil
}

var _ convlog.Store = (*ConversationStore)(nil)
