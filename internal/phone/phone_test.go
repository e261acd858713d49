package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize_Formats(t *testing.T) {
	inputs := []any{
		"5551234567",
		"(555) 123-4567",
		"555-123-4567",
		"555.123.4567",
		"+1 555 123 4567",
		"1-555-123-4567",
		"+15551234567",
		" 555 123 4567 ",
		int64(5551234567),
		float64(15551234567),
	}
	for _, in := range inputs {
		assert.Equal(t, "5551234567", Normalize(in), "input %v", in)
	}
}

func TestNormalize_Invalid(t *testing.T) {
	for _, in := range []any{nil, "", "abc", "555-1234", "123456789", "anonymous"} {
		assert.Equal(t, "", Normalize(in), "input %v", in)
	}
}

func TestNormalize_LongKeepsLast10(t *testing.T) {
	assert.Equal(t, "5551234567", Normalize("+44 (20) 5551234567"))
	assert.Equal(t, "2345678901", Normalize("912345678901"))
}

func TestNormalize_Idempotent(t *testing.T) {
	for _, in := range []any{"(555) 123-4567", "+1 555 123 4567", "555-1234", "", "912345678901", nil} {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %v", in)
	}
}

func TestLast10(t *testing.T) {
	assert.Equal(t, "5551234567", Last10("+1 (555) 123-4567"))
	assert.Equal(t, "1234", Last10("ext 1234"))
}

func TestDisplayAndE164(t *testing.T) {
	assert.Equal(t, "(555) 123-4567", Display("+15551234567"))
	assert.Equal(t, "+15551234567", E164("555.123.4567"))
	assert.Equal(t, "", E164("12"))
}
