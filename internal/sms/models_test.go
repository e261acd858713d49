package sms

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadbot/internal/calls"
)

func TestRowToRecord_CounterpartByDirection(t *testing.T) {
	f := NewFailureMatcher(DefaultFailureVocabulary)

	in := Row{Direction: "inbound", SenderPhone: "555-123-4567", RecipientPhone: "(555) 999-0000", DateTime: "2026-10-15T14:00:00Z"}
	rec, ok := in.ToRecord(f, nil)
	require.True(t, ok)
	assert.Equal(t, "5551234567", rec.Phone)
	assert.True(t, rec.IsReply())
	assert.Equal(t, 14, rec.Timestamp.Hour())

	out := Row{Direction: "outbound", SenderPhone: "(555) 999-0000", RecipientPhone: "+15551234567", Status: "DeliveryFailed"}
	rec, ok = out.ToRecord(f, nil)
	require.True(t, ok)
	assert.Equal(t, "5551234567", rec.Phone)
	assert.Equal(t, calls.DirectionOutbound, rec.Direction)
	assert.True(t, rec.IsFailed)
	assert.True(t, rec.Timestamp.IsZero())
}

func TestRowToRecord_InvalidPhone(t *testing.T) {
	_, ok := Row{Direction: "outbound", RecipientPhone: "12345"}.ToRecord(NewFailureMatcher(nil), nil)
	assert.False(t, ok)
}

func TestFailureMatcher(t *testing.T) {
	f := NewFailureMatcher(DefaultFailureVocabulary)
	assert.True(t, f.IsFailed("SendingFailed"))
	assert.True(t, f.IsFailed("Undelivered"))
	assert.False(t, f.IsFailed("Delivered"))
	assert.False(t, f.IsFailed(""))
}

func TestRowCellsRoundTripAndKey(t *testing.T) {
	cells := []string{"outbound", "SMS", "Pager", "+15559990000", "Office", "+15551234567", "Lead", "2026-10-15T14:00:00Z", "1", "Delivered", ""}
	row := RowFromCells(cells, DefaultColumns)
	assert.Equal(t, cells, row.Cells())
	assert.Equal(t, "2026-10-15T14:00:00Z_5559990000", row.DedupKey())
}
