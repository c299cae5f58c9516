package intent

import (
	"fmt"
	"strconv"
	"strings"
)

// BuildPrompt renders the single user message sent to the remote model.
func BuildPrompt(text, languageHint string) string {
	hint := strings.TrimSpace(languageHint)
	if hint == "" {
		hint = "auto"
	}
	return "You are an intent classifier for a restaurant call center. " +
		"Return ONLY valid JSON that matches this schema: " +
		`{"intent": "create_reservation|update_reservation|cancel_reservation|menu_question|hours_info|generic", ` +
		`"entities": {"name": string|null, "datetime": string|null, "people": number|null, "reservation_id": number|null}, ` +
		`"language": string}. ` +
		"Use ISO 8601 for datetime when possible. " +
		fmt.Sprintf("Caller language hint: %s. ", hint) +
		"User text: " + strconv.Quote(text)
}

func cleanJSON(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return text
	}
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(text, "```")
		text = strings.TrimSpace(text)
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return text[start : end+1]
	}
	return text
}
