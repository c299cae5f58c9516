package intent

import (
	"regexp"
	"strings"

	"github.com/harunnryd/tablecall/pkg/dialogue"
	"github.com/harunnryd/tablecall/pkg/extract"
)

type rule struct {
	intent dialogue.Intent
	re     *regexp.Regexp
}

// Evaluated top to bottom; cancellation and modification words are checked
// before booking words so "cancel my booking" is not read as a new booking.
var rules = []rule{
	{dialogue.IntentCancelReservation, regexp.MustCompile(`cancel|отмен|скас|zruš|zrus|storn`)},
	{dialogue.IntentUpdateReservation, regexp.MustCompile(`change|update|move|reschedul|измен|перен|змін|zmen|upravi|presun`)},
	{dialogue.IntentCreateReservation, regexp.MustCompile(`book|reserv|брон|rezerv`)},
	{dialogue.IntentMenuQuestion, regexp.MustCompile(`menu|меню|страв|блюд|jedl|jedál|ponuk|dish`)},
	{dialogue.IntentHoursInfo, regexp.MustCompile(`hours|open|close|работ|відкри|працю|otvár|otvor|hodin|час|годин`)},
}

// FallbackIntent is the keyword classifier used when no remote model answers.
func FallbackIntent(text string) dialogue.Intent {
	lowered := strings.ToLower(text)
	for _, r := range rules {
		if r.re.MatchString(lowered) {
			return r.intent
		}
	}
	return dialogue.IntentGeneric
}

// Fallback classifies with keywords and extracts entities with patterns.
// The language is the hint when given, otherwise detected from the text.
func Fallback(text, languageHint string) dialogue.IntentExtraction {
	lang := strings.TrimSpace(languageHint)
	if lang == "" {
		lang = extract.DetectLanguage(text)
	}
	return dialogue.IntentExtraction{
		Intent:   FallbackIntent(text),
		Entities: extract.ExtractEntities(text),
		Language: lang,
	}
}
