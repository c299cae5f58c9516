package twilio

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/harunnryd/tablecall/pkg/validate"
)

const (
	maxCallSID   = 64
	maxSpeech    = 4000
	maxDigits    = 32
	maxStatusLen = 32
)

type incomingPayload struct {
	CallSID string
	From    string
	To      string
}

type voicePayload struct {
	CallSID      string
	SpeechResult string
	Digits       string
	Confidence   float64
}

type statusPayload struct {
	CallSID    string
	CallStatus string
}

func parseIncoming(r *http.Request) (incomingPayload, error) {
	if err := r.ParseForm(); err != nil {
		return incomingPayload{}, err
	}
	var p incomingPayload
	var err error
	if p.CallSID, err = field(r, "CallSid", maxCallSID); err != nil {
		return p, err
	}
	if p.From, err = phone(r, "From"); err != nil {
		return p, err
	}
	if p.To, err = phone(r, "To"); err != nil {
		return p, err
	}
	return p, nil
}

// parseVoice treats a blank SpeechResult as "nothing heard" rather than an
// invalid payload.
func parseVoice(r *http.Request) (voicePayload, error) {
	if err := r.ParseForm(); err != nil {
		return voicePayload{}, err
	}
	var p voicePayload
	var err error
	if p.CallSID, err = field(r, "CallSid", maxCallSID); err != nil {
		return p, err
	}
	if speech, ok := formValue(r, "SpeechResult"); ok {
		p.SpeechResult, err = validate.Text(speech, maxSpeech)
		if errors.Is(err, validate.ErrEmpty) {
			p.SpeechResult, err = "", nil
		}
		if err != nil {
			return p, fmt.Errorf("SpeechResult: %w", err)
		}
	}
	if digits, ok := formValue(r, "Digits"); ok && digits != "" {
		if p.Digits, err = validate.Digits(digits, maxDigits); err != nil {
			return p, fmt.Errorf("Digits: %w", err)
		}
	}
	if raw, ok := formValue(r, "Confidence"); ok && raw != "" {
		if p.Confidence, err = strconv.ParseFloat(raw, 64); err != nil {
			return p, fmt.Errorf("Confidence: %w", err)
		}
	}
	return p, nil
}

func parseStatus(r *http.Request) (statusPayload, error) {
	if err := r.ParseForm(); err != nil {
		return statusPayload{}, err
	}
	var p statusPayload
	var err error
	if p.CallSID, err = field(r, "CallSid", maxCallSID); err != nil {
		return p, err
	}
	if p.CallStatus, err = field(r, "CallStatus", maxStatusLen); err != nil {
		return p, err
	}
	return p, nil
}

func formValue(r *http.Request, key string) (string, bool) {
	vs, ok := r.PostForm[key]
	if !ok || len(vs) == 0 {
		return "", false
	}
	return vs[0], true
}

func field(r *http.Request, key string, max int) (string, error) {
	v, err := validate.Text(r.PostFormValue(key), max)
	if err != nil {
		return "", fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func phone(r *http.Request, key string) (string, error) {
	raw, ok := formValue(r, key)
	if !ok || raw == "" {
		return "", nil
	}
	v, err := validate.Phone(raw)
	if err != nil {
		return "", fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}
