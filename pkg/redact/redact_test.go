package redact

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedactDisabled(t *testing.T) {
	SetEnabled(false)
	in := "email a@b.com and phone +421 905 123 456"
	assert.Equal(t, in, Text(in))
	assert.Equal(t, "+421905123456", Phone("+421905123456"))
}

func TestRedactEnabled(t *testing.T) {
	SetEnabled(true)
	defer SetEnabled(false)
	got := Text("email a@b.com and phone +421 (905) 123-456")
	assert.Equal(t, "email [REDACTED_EMAIL] and phone [REDACTED_PHONE]", got)
}

func TestRedactKeepsShortNumbers(t *testing.T) {
	SetEnabled(true)
	defer SetEnabled(false)
	in := "table for 4 at 19:30, booking 123"
	assert.Equal(t, in, Text(in))
}

func TestPhoneMask(t *testing.T) {
	SetEnabled(true)
	defer SetEnabled(false)
	assert.Equal(t, "+*********3456", Phone("+4219051233456"))
	assert.Equal(t, "1234", Phone("1234"))
}

func TestRedactKeepsReservationDates(t *testing.T) {
	SetEnabled(true)
	defer SetEnabled(false)
	in := "book for 2 on 2025-05-10 18:30, call me on +421 905 123 456"
	assert.Equal(t, "book for 2 on 2025-05-10 18:30, call me on [REDACTED_PHONE]", Text(in))
}

func TestValueMasksAtLogTime(t *testing.T) {
	SetEnabled(true)
	defer SetEnabled(false)
	v := Value("write to a@b.com")
	assert.Equal(t, "write to [REDACTED_EMAIL]", v.LogValue().String())
}
