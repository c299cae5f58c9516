// Package redact masks caller contact details before they reach the logs.
// Redaction is off by default and switched on by privacy.redact_pii.
package redact

import (
	"log/slog"
	"regexp"
	"strings"
	"sync/atomic"
)

var enabled atomic.Bool

type rule struct {
	re   *regexp.Regexp
	mask string
	// keep reports matches that look like contact data but are not.
	keep func(string) bool
}

var (
	isoDateRe = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)

	rules = []rule{
		{re: regexp.MustCompile(`(?i)[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}`), mask: "[REDACTED_EMAIL]"},
		{
			re:   regexp.MustCompile(`\+?\d[\d\-()\s]{7,}\d`),
			mask: "[REDACTED_PHONE]",
			// reservation dates such as "2025-05-10 18" are digit runs too
			keep: isoDateRe.MatchString,
		},
	}
)

func SetEnabled(v bool) { enabled.Store(v) }

func Enabled() bool { return enabled.Load() }

// Text masks email addresses and phone numbers in free text.
func Text(in string) string {
	if !enabled.Load() || strings.TrimSpace(in) == "" {
		return in
	}
	out := in
	for _, r := range rules {
		out = r.re.ReplaceAllStringFunc(out, func(m string) string {
			if r.keep != nil && r.keep(m) {
				return m
			}
			return r.mask
		})
	}
	return out
}

// Phone keeps the last four digits of a number and stars the rest.
func Phone(in string) string {
	if !enabled.Load() {
		return in
	}
	total := strings.Count(strings.Map(digitsOnly, in), "") - 1
	if total <= 4 {
		return in
	}
	hide := total - 4
	b := []rune(in)
	for i, r := range b {
		if hide == 0 {
			break
		}
		if digitsOnly(r) >= 0 {
			b[i] = '*'
			hide--
		}
	}
	return string(b)
}

func digitsOnly(r rune) rune {
	if r >= '0' && r <= '9' {
		return r
	}
	return -1
}

// Value defers masking until the record is emitted, so disabled log levels
// never pay for the regex pass.
type Value string

func (v Value) LogValue() slog.Value { return slog.StringValue(Text(string(v))) }
