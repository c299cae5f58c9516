package twilio

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/harunnryd/tablecall/pkg/validate"
	"github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"
)

var (
	ErrNoCredentials = errors.New("twilio credentials not configured")
	ErrNoCallSID     = errors.New("twilio returned no call sid")
)

type callCreator interface {
	CreateCall(params *api.CreateCallParams) (*api.ApiV2010Call, error)
}

type DialOptions struct {
	// SendDigits is played as DTMF once the call connects.
	SendDigits string
	// StatusCallback overrides the configured status webhook. "-" disables it.
	StatusCallback string
}

// Dialer places outbound calls; the callee is connected to the same voice
// webhook an inbound caller reaches.
type Dialer struct {
	cfg    Config
	client callCreator
}

func NewDialer(cfg Config) *Dialer {
	return &Dialer{cfg: cfg.withDefaults()}
}

func (d *Dialer) Dial(ctx context.Context, to, from, url string) (string, error) {
	return d.DialWithOptions(ctx, to, from, url, DialOptions{})
}

// DialWithOptions returns the SID of the created call. An empty from falls
// back to the configured number, an empty url to the incoming webhook.
func (d *Dialer) DialWithOptions(ctx context.Context, to, from, url string, opts DialOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if d.cfg.AccountSID == "" || d.cfg.AuthToken == "" {
		return "", ErrNoCredentials
	}
	params, err := d.callParams(to, from, url, opts)
	if err != nil {
		return "", err
	}
	call, err := d.creator().CreateCall(params)
	if err != nil {
		return "", fmt.Errorf("twilio create call: %w", err)
	}
	if call == nil || call.Sid == nil || *call.Sid == "" {
		return "", ErrNoCallSID
	}
	return *call.Sid, nil
}

func (d *Dialer) callParams(to, from, url string, opts DialOptions) (*api.CreateCallParams, error) {
	if from == "" {
		from = d.cfg.PhoneNumber
	}
	to, err := validate.Phone(to)
	if err != nil {
		return nil, fmt.Errorf("to: %w", err)
	}
	if from, err = validate.Phone(from); err != nil {
		return nil, fmt.Errorf("from: %w", err)
	}
	if url == "" {
		url = d.cfg.VoiceWebhookURL()
	}

	p := (&api.CreateCallParams{}).SetTo(to).SetFrom(from).SetUrl(url).SetMethod("POST")
	callback := strings.TrimSpace(opts.StatusCallback)
	if callback == "" {
		callback = d.cfg.StatusCallbackURL()
	}
	if callback != "-" {
		p.SetStatusCallback(callback).SetStatusCallbackMethod("POST")
	}
	if digits := strings.TrimSpace(opts.SendDigits); digits != "" {
		p.SetSendDigits(digits)
	}
	return p, nil
}

func (d *Dialer) creator() callCreator {
	if d.client != nil {
		return d.client
	}
	return twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: d.cfg.AccountSID,
		Password: d.cfg.AuthToken,
	}).Api
}
