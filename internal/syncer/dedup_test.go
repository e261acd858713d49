package syncer

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"leadbot/internal/calls"
	"leadbot/internal/sms"
)

func syntheticCalls(n int) []calls.Row {
	rows := make([]calls.Row, n)
	for i := range rows {
		rows[i] = calls.Row{Phone: fmt.Sprintf("(555) 100-%04d", i), Date: "3/4/2025", Time: fmt.Sprintf("9:%02d:00 AM", i%60)}
	}
	return rows
}

func TestDedup_IdenticalBatchYieldsNothing(t *testing.T) {
	stored := syntheticCalls(25)
	fresh := Dedup(stored, syntheticCalls(25))
	assert.Empty(t, fresh)
	assert.Equal(t, 25, len(stored)+len(fresh))
}

func TestDedup_KeysOnLast10Digits(t *testing.T) {
	stored := []calls.Row{{Phone: "+1 (555) 123-4567", Date: "3/4/2025", Time: "9:00 AM"}}
	fetched := []calls.Row{
		{Phone: "5551234567", Date: "3/4/2025", Time: "9:00 AM"},
		{Phone: "5551234567", Date: "3/4/2025", Time: "9:01 AM"},
		{Phone: "5551234567", Date: "3/4/2025", Time: "9:01 AM"},
	}
	fresh := Dedup(stored, fetched)
	assert.Len(t, fresh, 1)
	assert.Equal(t, "9:01 AM", fresh[0].Time)
}

func TestDedup_SMSUsesSender(t *testing.T) {
	stored := []sms.Row{{SenderPhone: "5559990000", RecipientPhone: "5551111111", DateTime: "3/4/2025 9:00:00 AM"}}
	fetched := []sms.Row{
		{SenderPhone: "5559990000", RecipientPhone: "5552222222", DateTime: "3/4/2025 9:00:00 AM"},
		{SenderPhone: "5551111111", RecipientPhone: "5559990000", DateTime: "3/4/2025 9:00:00 AM"},
	}
	fresh := Dedup(stored, fetched)
	assert.Len(t, fresh, 1, "same second and sender collide even for a different recipient")
	assert.Equal(t, "5551111111", fresh[0].SenderPhone)
}

func TestDedup_CollapsesRepeatsWithinFetched(t *testing.T) {
	page2 := syntheticCalls(3)
	page3 := append([]calls.Row{page2[2]}, syntheticCalls(5)[3:]...)
	fresh := Dedup(nil, append(page2, page3...))
	assert.Len(t, fresh, 5)
	assert.Equal(t, syntheticCalls(5), fresh)
}
