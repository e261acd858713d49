package tracker

import (
	"strings"

	"github.com/rotisserie/eris"

	"leadbot/internal/enrich"
)

// leadHeaders maps lower-cased header names to lead fields.
var leadHeaders = map[string]string{
	"id":            "id",
	"lead id":       "id",
	"lead #":        "id",
	"name":          "name",
	"customer":      "name",
	"customer name": "name",
	"lead name":     "name",
	"phone":         "phone",
	"phone number":  "phone",
	"mobile":        "phone",
	"cell":          "phone",
	"source":        "source",
	"lead source":   "source",
	"rep":           "rep",
	"sales rep":     "rep",
	"assigned to":   "rep",
}

// ReadLeads reads a lead sheet. The first non-blank row is the header;
// columns are matched by name, case-insensitively. Unknown columns land in
// Lead.Extra. A sheet without a phone column is an error.
func ReadLeads(path string, opts SheetOptions) ([]enrich.Lead, error) {
	rows, err := ReadRows(path, opts)
	if err != nil {
		return nil, err
	}

	start := 0
	for start < len(rows) && blank(rows[start]) {
		start++
	}
	if start == len(rows) {
		return nil, nil
	}

	header := rows[start]
	fields := make([]string, len(header))
	hasPhone := false
	for i, h := range header {
		if f, ok := leadHeaders[strings.ToLower(strings.TrimSpace(h))]; ok {
			fields[i] = f
			hasPhone = hasPhone || f == "phone"
		}
	}
	if !hasPhone {
		return nil, eris.Errorf("tracker: no phone column in %s", path)
	}

	var leads []enrich.Lead
	for _, cells := range rows[start+1:] {
		if blank(cells) {
			continue
		}
		var l enrich.Lead
		for i, v := range cells {
			if i >= len(header) || v == "" {
				continue
			}
			switch fields[i] {
			case "id":
				l.ID = v
			case "name":
				l.Name = v
			case "phone":
				l.Phone = v
			case "source":
				l.Source = v
			case "rep":
				l.Rep = v
			default:
				if header[i] == "" {
					continue
				}
				if l.Extra == nil {
					l.Extra = map[string]string{}
				}
				l.Extra[header[i]] = v
			}
		}
		leads = append(leads, l)
	}
	return leads, nil
}
