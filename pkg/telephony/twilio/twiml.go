package twilio

import (
	"net/http"
	"strings"

	"github.com/twilio/twilio-go/twiml"
)

const greeting = "Hello! Welcome to our restaurant. How can I help you today?"

var farewells = map[string]string{
	"en": "Thank you for calling. Goodbye!",
	"ru": "Спасибо за звонок. До свидания!",
	"uk": "Дякуємо за дзвінок. До побачення!",
	"sk": "Ďakujeme za zavolanie. Dovidenia!",
}

var reprompts = map[string]string{
	"en": "I didn't catch that. Could you please repeat?",
	"ru": "Извините, я не расслышал. Повторите, пожалуйста.",
	"uk": "Вибачте, я не почув. Повторіть, будь ласка.",
	"sk": "Prepáčte, nerozumel som. Môžete to zopakovať?",
}

// Amazon Polly has no Ukrainian or Slovak voice; Russian and Polish stand in.
var pollyVoices = map[string]string{
	"en": "Polly.Joanna",
	"ru": "Polly.Tatyana",
	"uk": "Polly.Tatyana",
	"sk": "Polly.Maja",
}

var locales = map[string]string{
	"en": "en-US",
	"ru": "ru-RU",
	"uk": "uk-UA",
	"sk": "sk-SK",
}

func langCode(language string) string {
	if len(language) < 2 {
		return "en"
	}
	return strings.ToLower(language[:2])
}

func pollyVoice(language string) string {
	if v, ok := pollyVoices[langCode(language)]; ok {
		return v
	}
	return pollyVoices["en"]
}

func locale(language string) string {
	if v, ok := locales[langCode(language)]; ok {
		return v
	}
	return locales["en"]
}

func reprompt(language string) string {
	if v, ok := reprompts[langCode(language)]; ok {
		return v
	}
	return reprompts["en"]
}

func farewell(language string) string {
	if v, ok := farewells[langCode(language)]; ok {
		return v
	}
	return farewells["en"]
}

func say(text, language string) *twiml.VoiceSay {
	return &twiml.VoiceSay{
		Message:  text,
		Voice:    pollyVoice(language),
		Language: locale(language),
	}
}

// gatherTwiML speaks text and listens for the caller's next utterance.
func (h *Handler) gatherTwiML(text, language string) (string, error) {
	gather := &twiml.VoiceGather{
		Input:         "speech",
		Action:        h.cfg.VoicePath,
		Method:        http.MethodPost,
		Timeout:       "3",
		Language:      locale(language),
		SpeechTimeout: h.cfg.SpeechTimeout,
		SpeechModel:   "phone_call",
		InnerElements: []twiml.Element{say(text, language)},
	}
	return twiml.Voice([]twiml.Element{gather})
}

// hangupTwiML speaks the final answer with a farewell and ends the call.
func hangupTwiML(answer, language string) (string, error) {
	text := strings.TrimRight(strings.TrimSpace(answer), ".!? ") + ". " + farewell(language)
	return twiml.Voice([]twiml.Element{say(text, language), &twiml.VoiceHangup{}})
}

func emptyTwiML() (string, error) {
	return twiml.Voice([]twiml.Element{})
}
