// Package twilio serves the Twilio voice webhooks and places outbound calls.
package twilio

import "strings"

type Config struct {
	ServerAddr        string `mapstructure:"server_addr"`
	PublicURL         string `mapstructure:"public_url"`
	AccountSID        string `mapstructure:"account_sid"`
	AuthToken         string `mapstructure:"auth_token"`
	PhoneNumber       string `mapstructure:"phone_number"`
	IncomingPath      string `mapstructure:"incoming_path"`
	VoicePath         string `mapstructure:"voice_path"`
	StatusPath        string `mapstructure:"status_path"`
	ValidateSignature bool   `mapstructure:"validate_signature"`
	SpeechTimeout     string `mapstructure:"speech_timeout"`
}

func (c Config) withDefaults() Config {
	if c.ServerAddr == "" {
		c.ServerAddr = ":8080"
	}
	if c.IncomingPath == "" {
		c.IncomingPath = "/twilio/incoming"
	}
	if c.VoicePath == "" {
		c.VoicePath = "/twilio/voice"
	}
	if c.StatusPath == "" {
		c.StatusPath = "/twilio/status"
	}
	if c.SpeechTimeout == "" {
		c.SpeechTimeout = "auto"
	}
	return c
}

// verifySignatures reports whether webhook requests must carry a valid
// X-Twilio-Signature.
func (c Config) verifySignatures() bool {
	return c.ValidateSignature && c.AuthToken != ""
}

func (c Config) webhookURL(path string) string {
	if c.PublicURL != "" {
		return "https://" + normalizePublicURL(c.PublicURL) + path
	}
	addr := c.ServerAddr
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr + path
}

// VoiceWebhookURL is the absolute URL Twilio should request when a call connects.
func (c Config) VoiceWebhookURL() string {
	c = c.withDefaults()
	return c.webhookURL(c.IncomingPath)
}

// StatusCallbackURL is the absolute URL for call status callbacks.
func (c Config) StatusCallbackURL() string {
	c = c.withDefaults()
	return c.webhookURL(c.StatusPath)
}

func normalizePublicURL(v string) string {
	v = strings.TrimPrefix(v, "https://")
	v = strings.TrimPrefix(v, "http://")
	return strings.TrimRight(v, "/")
}
