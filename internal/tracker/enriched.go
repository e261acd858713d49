package tracker

import (
	"slices"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"leadbot/internal/enrich"
	"leadbot/internal/phone"
)

// EnrichedSheet is the sheet name WriteEnriched uses.
const EnrichedSheet = "Enriched"

var enrichedHeader = []string{
	"ID", "Name", "Phone", "Source", "Rep",
	"Calls", "Voicemails", "SMS", "Replies", "Inbound Calls",
	"Longest Call", "Last Call", "Last SMS", "Last Reply",
	"Replied", "Long Call", "SMS Failed", "All SMS Failed",
	"Direction", "Temperature",
}

// WriteEnriched writes leads with their RC view, direction and temperature
// to a new workbook. Extra columns follow the fixed ones in name order.
func WriteEnriched(path string, leads []enrich.Lead) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(EnrichedSheet)
	if err != nil {
		return eris.Wrap(err, "tracker: add sheet")
	}

	extras := extraKeys(leads)
	addRow(sheet, append(slices.Clone(enrichedHeader), extras...))

	for _, l := range leads {
		rc := l.RC
		if rc == nil {
			rc = &enrich.RC{}
		}
		cells := []string{
			l.ID, l.Name, displayPhone(l.Phone), l.Source, l.Rep,
			strconv.Itoa(rc.CallsTotal), strconv.Itoa(rc.VMTotal), strconv.Itoa(rc.SMSTotal),
			strconv.Itoa(rc.RepliesTotal), strconv.Itoa(rc.InboundCallsTotal),
			rc.LongestCall, rc.LastCall.Ago, rc.LastSMS.Ago, rc.LastReply.Ago,
			yesNo(rc.HasReplied), yesNo(rc.HasLongCall), yesNo(rc.HasFailedSMS), yesNo(rc.AllSMSFailed),
			string(l.Direction), string(l.Temperature),
		}
		for _, k := range extras {
			cells = append(cells, l.Extra[k])
		}
		addRow(sheet, cells)
	}

	if err := f.Save(path); err != nil {
		return eris.Wrap(err, "tracker: save file")
	}
	return nil
}

func addRow(sheet *xlsx.Sheet, cells []string) {
	row := sheet.AddRow()
	for _, v := range cells {
		row.AddCell().SetString(v)
	}
}

func extraKeys(leads []enrich.Lead) []string {
	seen := map[string]struct{}{}
	var keys []string
	for _, l := range leads {
		for k := range l.Extra {
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				keys = append(keys, k)
			}
		}
	}
	slices.Sort(keys)
	return keys
}

// displayPhone keeps unparseable numbers as entered so reps can fix them.
func displayPhone(raw string) string {
	if d := phone.Display(raw); d != "" {
		return d
	}
	return raw
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
