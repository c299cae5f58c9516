package dialogue

// Role marks who produced a history entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type HistoryMessage struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// CallState is the mutable context of one call. It is owned by a single
// goroutine at a time and is not safe for concurrent use.
type CallState struct {
	CallID       string           `json:"call_id"`
	Language     string           `json:"language,omitempty"`
	History      []HistoryMessage `json:"history"`
	LastUserText string           `json:"last_user_text,omitempty"`
	Intent       Intent           `json:"intent,omitempty"`
	Entities     *Entities        `json:"entities"`
	ToolResults  []ToolResult     `json:"tool_results"`
	FinalAnswer  *AgentResponse   `json:"final_answer"`
	// Answered is the history length covered by the last definitive reply.
	// User entries before it are settled and never processed again.
	Answered int `json:"answered,omitempty"`
}

func NewCallState(callID, language string) *CallState {
	return &CallState{CallID: callID, Language: language}
}

func (s *CallState) AddHistory(role Role, text string) {
	s.History = append(s.History, HistoryMessage{Role: role, Text: text})
}

// UserMessages returns the user entries of the history in order.
func (s *CallState) UserMessages() []HistoryMessage {
	var out []HistoryMessage
	for _, m := range s.History {
		if m.Role == RoleUser {
			out = append(out, m)
		}
	}
	return out
}

// PendingUserIndexes returns the history positions of user entries that
// no definitive reply has covered yet, oldest first.
func (s *CallState) PendingUserIndexes() []int {
	var out []int
	for i := min(max(s.Answered, 0), len(s.History)); i < len(s.History); i++ {
		if s.History[i].Role == RoleUser {
			out = append(out, i)
		}
	}
	return out
}

// LastUserEntry returns the most recent user entry of the history.
func (s *CallState) LastUserEntry() (HistoryMessage, bool) {
	for i := len(s.History) - 1; i >= 0; i-- {
		if s.History[i].Role == RoleUser {
			return s.History[i], true
		}
	}
	return HistoryMessage{}, false
}

// LastUserMessage is the utterance in progress, or the latest user entry.
func (s *CallState) LastUserMessage() string {
	if s.LastUserText != "" {
		return s.LastUserText
	}
	m, _ := s.LastUserEntry()
	return m.Text
}

// Submit sets the utterance to process next.
func (s *CallState) Submit(text string) {
	s.LastUserText = text
}
