// Package reply turns the state of a turn into a canned localized answer.
package reply

import (
	"strconv"
	"strings"

	"github.com/harunnryd/tablecall/pkg/dialogue"
)

// Compose is a pure function of the current intent, entities, tool results
// and language. Unsupported languages answer in English.
func Compose(state *dialogue.CallState) dialogue.AgentResponse {
	lang := state.Language
	if lang == "" {
		lang = "en"
	}
	t := table(lang)
	resp := dialogue.AgentResponse{Language: lang}

	switch state.Intent {
	case dialogue.IntentHoursInfo:
		resp.AnswerText = t[hours]
	case dialogue.IntentMenuQuestion:
		resp.AnswerText = menuAnswer(state.ToolResults, t)
	case dialogue.IntentCreateReservation:
		var missing []string
		e := state.Entities
		if !e.HasName() {
			missing = append(missing, t[missingName])
		}
		if !e.HasDateTime() {
			missing = append(missing, t[missingDateTime])
		}
		if !e.HasPeople() {
			missing = append(missing, t[missingPeople])
		}
		if len(missing) > 0 {
			resp.AnswerText = strings.Join(missing, " ")
			resp.Actions = []dialogue.Action{dialogue.ActionClarify}
		} else {
			resp.AnswerText = t[created]
		}
	case dialogue.IntentUpdateReservation, dialogue.IntentCancelReservation:
		switch {
		case !state.Entities.HasReservationID():
			resp.AnswerText = t[missingReservationID]
			resp.Actions = []dialogue.Action{dialogue.ActionClarify}
		case state.Intent == dialogue.IntentUpdateReservation:
			resp.AnswerText = t[updated]
		default:
			resp.AnswerText = t[cancelled]
		}
	default:
		resp.AnswerText = t[generic]
	}
	return resp
}

func menuAnswer(results []dialogue.ToolResult, t map[phraseKey]string) string {
	var parts []string
	for _, r := range results {
		p, ok := r.Payload.(dialogue.MenuPayload)
		if !ok {
			continue
		}
		for _, item := range p.Items {
			if strings.TrimSpace(item.Name) == "" {
				continue
			}
			parts = append(parts, item.Name+" ("+strconv.FormatFloat(item.Price, 'f', 2, 64)+")")
		}
	}
	if len(parts) == 0 {
		return t[menuEmpty]
	}
	return strings.Join(parts, ", ")
}

// Apology is the reply used when a collaborator failed mid-turn. It asks for
// nothing, so callers decide whether to keep listening.
func Apology(lang string) dialogue.AgentResponse {
	if lang == "" {
		lang = "en"
	}
	return dialogue.AgentResponse{AnswerText: table(lang)[apology], Language: lang}
}
