package audit

import "time"

// Event is an immutable, append-only audit record.
//
// Invariants:
// - Events are never updated or deleted.
// - Audit writes are best-effort; sync and send paths never fail because of them.
type Event struct {
	ID   string    `json:"id"`
	Type EventType `json:"type"`

	// RunID groups the events of one sync invocation.
	RunID string `json:"run_id,omitempty"`

	// ActorUserID is empty for scheduled runs.
	ActorUserID string `json:"actor_user_id,omitempty"`
	ActorRole   string `json:"actor_role,omitempty"`

	// Kind is calls or sms for sync runs.
	Kind string `json:"kind,omitempty"`
	Day  string `json:"day,omitempty"`

	Fetched  int `json:"fetched"`
	NewCount int `json:"new_count"`
	Total    int `json:"total"`

	// Stage is where the run ended.
	Stage string `json:"stage,omitempty"`
	Error string `json:"error,omitempty"`

	Message string `json:"message,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

type EventType string

const (
	EventTypeSyncRun EventType = "sync_run"
	EventTypeSMSSent EventType = "sms_sent"
	EventTypeImport  EventType = "import"
)

// SyncSummary is what the sync engine reports at the end of one kind.
type SyncSummary struct {
	RunID    string
	Kind     string
	Day      string
	Fetched  int
	NewCount int
	Total    int
	Stage    string
	Err      error
}
