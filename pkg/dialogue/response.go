package dialogue

// Action is a symbolic flag on a composed reply.
type Action string

// ActionClarify means the assistant needs more information and the
// conversation stays open.
const ActionClarify Action = "clarify"

// AgentResponse is one composed reply.
type AgentResponse struct {
	AnswerText string   `json:"answer_text"`
	Actions    []Action `json:"actions"`
	Language   string   `json:"language"`
}

func (r AgentResponse) NeedsClarification() bool {
	for _, a := range r.Actions {
		if a == ActionClarify {
			return true
		}
	}
	return false
}
