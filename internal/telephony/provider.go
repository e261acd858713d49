package telephony

import (
	"context"
	"time"

	"leadbot/internal/calls"
	"leadbot/internal/sms"
)

// CallLogSource pages the account call log.
//
// Rules:
// - Pages are 1-based.
// - Returned rows are already in the positional call-row shape.
type CallLogSource interface {
	CallLog(ctx context.Context, req CallLogRequest) (CallLogPage, error)
}

// MessageExporter drives the asynchronous message-store export.
type MessageExporter interface {
	CreateMessageExport(ctx context.Context, from, to time.Time) (ExportTask, error)
	GetMessageExport(ctx context.Context, id string) (ExportTask, error)
	DownloadMessageExport(ctx context.Context, task ExportTask) ([]sms.Row, error)
}

// SMSSender sends one outbound text.
type SMSSender interface {
	SendSMS(ctx context.Context, req SendSMSRequest) (SendSMSResult, error)
}

// Provider is everything the sync engine and API need from the phone system.
type Provider interface {
	CallLogSource
	MessageExporter
	SMSSender
}

type CallLogRequest struct {
	From    time.Time
	To      time.Time
	Page    int
	PerPage int
}

type CallLogPage struct {
	Rows   []calls.Row `json:"rows"`
	Paging Paging      `json:"paging"`
}

// Paging mirrors the API's paging block.
type Paging struct {
	Page          int `json:"page"`
	PerPage       int `json:"perPage"`
	TotalPages    int `json:"totalPages"`
	TotalElements int `json:"totalElements"`
}

type ExportStatus string

const (
	ExportAccepted   ExportStatus = "Accepted"
	ExportInProgress ExportStatus = "InProgress"
	ExportCompleted  ExportStatus = "Completed"
	ExportFailed     ExportStatus = "Failed"
	ExportCancelled  ExportStatus = "Cancelled"
)

// Terminal reports whether polling can stop.
func (s ExportStatus) Terminal() bool {
	switch s {
	case ExportCompleted, ExportFailed, ExportCancelled:
		return true
	default:
		return false
	}
}

type ExportTask struct {
	ID     string       `json:"id"`
	Status ExportStatus `json:"status"`
	// ArchiveURIs is filled once the task completes.
	ArchiveURIs []string `json:"archive_uris,omitempty"`
}

type SendSMSRequest struct {
	// From and To are phone keys or any raw phone form.
	From string `json:"from"`
	To   string `json:"to"`
	Text string `json:"text"`
}

type SendSMSResult struct {
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
}
