package telephony

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"io"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"leadbot/internal/calls"
	"leadbot/internal/sms"
	"leadbot/internal/timefmt"
)

type party struct {
	PhoneNumber     string `json:"phoneNumber"`
	ExtensionNumber string `json:"extensionNumber"`
	Name            string `json:"name"`
}

type callLogResponse struct {
	Records []callRecord `json:"records"`
	Paging  Paging       `json:"paging"`
}

type callRecord struct {
	ID        string    `json:"id"`
	Direction string    `json:"direction"`
	Type      string    `json:"type"`
	From      party     `json:"from"`
	To        party     `json:"to"`
	StartTime time.Time `json:"startTime"`
	Duration  int       `json:"duration"`
	Action    string    `json:"action"`
	Result    string    `json:"result"`
	Reason    string    `json:"reason"`
}

// toRow keeps the counterpart in the Phone/Name columns: the caller for
// inbound calls, the dialled party for outbound ones.
func (r callRecord) toRow(loc *time.Location) calls.Row {
	other := r.To
	if calls.ParseDirection(r.Direction) == calls.DirectionInbound {
		other = r.From
	}
	row := calls.Row{
		Direction: r.Direction,
		Type:      r.Type,
		Phone:     other.PhoneNumber,
		Name:      other.Name,
		Action:    r.Action,
		Result:    r.Result,
		Reason:    r.Reason,
		Duration:  timefmt.FormatDuration(r.Duration),
	}
	if !r.StartTime.IsZero() {
		local := r.StartTime.In(loc)
		row.Date = local.Format(timefmt.RowDateLayout)
		row.Time = local.Format(timefmt.RowClockLayout)
	}
	return row
}

type exportTaskResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (r exportTaskResponse) toTask() ExportTask {
	return ExportTask{ID: r.ID, Status: ExportStatus(r.Status)}
}

type archiveResponse struct {
	Records []struct {
		Size int64  `json:"size"`
		URI  string `json:"uri"`
	} `json:"records"`
}

type messageRecord struct {
	ID            json.Number `json:"id"`
	Direction     string      `json:"direction"`
	Type          string      `json:"type"`
	MessageType   string      `json:"messageType"`
	From          party       `json:"from"`
	To            []party     `json:"to"`
	CreationTime  time.Time   `json:"creationTime"`
	MessageStatus string      `json:"messageStatus"`
	ErrorCode     string      `json:"errorCode"`
	SegmentCount  int         `json:"segmentCount"`
}

func (m messageRecord) toRow(loc *time.Location) sms.Row {
	var to party
	if len(m.To) > 0 {
		to = m.To[0]
	}
	row := sms.Row{
		Direction:      m.Direction,
		Type:           m.Type,
		MessageType:    m.MessageType,
		SenderPhone:    m.From.PhoneNumber,
		SenderName:     m.From.Name,
		RecipientPhone: to.PhoneNumber,
		RecipientName:  to.Name,
		Status:         m.MessageStatus,
		DetailedError:  m.ErrorCode,
	}
	if m.SegmentCount > 0 {
		row.SegmentCount = strconv.Itoa(m.SegmentCount)
	}
	if !m.CreationTime.IsZero() {
		row.DateTime = m.CreationTime.In(loc).Format(timefmt.RowDateTimeLayout)
	}
	return row
}

// parseArchive reads a zip of JSON files. Each file holds either a single
// message, an array of messages, or an object with a records array. Non-SMS
// entries are skipped.
func parseArchive(data []byte, loc *time.Location) ([]sms.Row, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, eris.Wrap(err, "open zip")
	}

	var out []sms.Row
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !strings.EqualFold(path.Ext(f.Name), ".json") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, eris.Wrapf(err, "open %s", f.Name)
		}
		raw, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return nil, eris.Wrapf(err, "read %s", f.Name)
		}

		msgs, err := decodeMessages(raw)
		if err != nil {
			return nil, eris.Wrapf(err, "decode %s", f.Name)
		}
		for _, m := range msgs {
			if m.Type != "" && !strings.EqualFold(m.Type, "SMS") {
				continue
			}
			out = append(out, m.toRow(loc))
		}
	}
	return out, nil
}

func decodeMessages(raw []byte) ([]messageRecord, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, nil
	}
	if raw[0] == '[' {
		var list []messageRecord
		err := json.Unmarshal(raw, &list)
		return list, err
	}

	var wrapper struct {
		Records []messageRecord `json:"records"`
	}
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return nil, err
	}
	if wrapper.Records != nil {
		return wrapper.Records, nil
	}

	var one messageRecord
	if err := json.Unmarshal(raw, &one); err != nil {
		return nil, err
	}
	return []messageRecord{one}, nil
}
