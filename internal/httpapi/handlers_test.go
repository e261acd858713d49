package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadbot/internal/audit"
	"leadbot/internal/auth"
	"leadbot/internal/calls"
	"leadbot/internal/config"
	"leadbot/internal/contacts"
	"leadbot/internal/eventlog"
	"leadbot/internal/rbac"
	"leadbot/internal/reporting"
	"leadbot/internal/resilience"
	"leadbot/internal/sms"
	"leadbot/internal/syncer"
	"leadbot/internal/telephony"
)

var now = time.Date(2025, 3, 4, 15, 0, 0, 0, time.UTC)

type fakeSync struct {
	started []syncer.Request
	err     error
}

func (f *fakeSync) Start(_ context.Context, req syncer.Request) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.started = append(f.started, req)
	return "run-1", nil
}

func (f *fakeSync) Progress() syncer.ProgressSnapshot {
	return syncer.ProgressSnapshot{RunID: "run-1", Running: true, Stage: syncer.StageFetchingBatch, Percent: 40}
}

type fakeSender struct {
	got []telephony.SendSMSRequest
	err error
}

func (f *fakeSender) SendSMS(_ context.Context, req telephony.SendSMSRequest) (telephony.SendSMSResult, error) {
	if f.err != nil {
		return telephony.SendSMSResult{}, f.err
	}
	f.got = append(f.got, req)
	return telephony.SendSMSResult{MessageID: "msg-1", Status: "Queued"}, nil
}

type fixture struct {
	router  *gin.Engine
	tokens  *auth.Manager
	sync    *fakeSync
	sender  *fakeSender
	auditor *audit.MemoryRepo
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ctx := context.Background()
	repo := eventlog.NewMemoryRepo()
	require.NoError(t, repo.AppendCalls(ctx, "2025-03-03", []calls.Row{
		{Direction: "Outbound", Phone: "5551234567", Date: "3/3/2025", Time: "4:00 PM", Duration: "6:00", Result: "Accepted"},
	}))
	require.NoError(t, repo.AppendCalls(ctx, "2025-03-04", []calls.Row{
		{Direction: "Inbound", Phone: "5551234567", Date: "3/4/2025", Time: "9:00 AM", Duration: "1:00", Result: "Accepted"},
	}))
	require.NoError(t, repo.AppendSMS(ctx, "2025-03-04", []sms.Row{
		{Direction: "Outbound", SenderPhone: "5559990000", RecipientPhone: "5551234567", DateTime: "3/4/2025 9:05:00 AM", Status: "Delivered"},
	}))

	tokens, err := auth.NewManager(config.AuthConfig{
		JWTSecret:       "secret",
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 2 * time.Hour,
	})
	require.NoError(t, err)

	buildCfg := contacts.DefaultBuildConfig(time.UTC)
	f := &fixture{
		tokens:  tokens,
		sync:    &fakeSync{},
		sender:  &fakeSender{},
		auditor: audit.NewMemoryRepo(),
	}
	h := Handlers{
		Sync:       f.sync,
		Contacts:   contacts.NewService(repo, contacts.NewMemoryCache(), buildCfg, 0),
		Reports:    reporting.NewService(repo, buildCfg),
		SMS:        f.sender,
		Audit:      audit.NewService(f.auditor),
		FromNumber: "5559990000",
		Now:        func() time.Time { return now },
	}
	f.router = gin.New()
	Register(f.router, h, auth.RequireAccessToken(tokens))
	return f
}

func (f *fixture) do(t *testing.T, role, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		pair, err := f.tokens.IssuePair(time.Now(), "user-1", role)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, "", http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRoutesRequireToken(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, "", http.MethodGet, "/v1/sync/progress", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSyncProgress(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, rbac.RoleRep, http.MethodGet, "/v1/sync/progress", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var snap syncer.ProgressSnapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.True(t, snap.Running)
	assert.InDelta(t, 40.0, snap.Percent, 0.001)
}

func TestStartSync(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, rbac.RoleRep, http.MethodPost, "/v1/sync", gin.H{"kind": "calls"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, rbac.RoleManager, http.MethodPost, "/v1/sync", gin.H{"kind": "calls"})
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.JSONEq(t, `{"run_id":"run-1","kind":"calls"}`, w.Body.String())
	require.Len(t, f.sync.started, 1)
	assert.Equal(t, syncer.KindCalls, f.sync.started[0].Kind)

	w = f.do(t, rbac.RoleAdmin, http.MethodPost, "/v1/sync", nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, syncer.KindAll, f.sync.started[1].Kind)

	w = f.do(t, rbac.RoleManager, http.MethodPost, "/v1/sync", gin.H{"kind": "fax"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStartSync_Conflict(t *testing.T) {
	f := newFixture(t)
	f.sync.err = syncer.ErrAlreadyRunning
	w := f.do(t, rbac.RoleManager, http.MethodPost, "/v1/sync", gin.H{"kind": "all"})
	assert.Equal(t, http.StatusConflict, w.Code)

	f.sync.err = eventlog.ErrInvalidDay
	w = f.do(t, rbac.RoleManager, http.MethodPost, "/v1/sync", gin.H{"day": "yesterday"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEnrichLeads(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, rbac.RoleRep, http.MethodPost, "/v1/leads/enrich", gin.H{"leads": []gin.H{
		{"name": "Ada", "phone": "(555) 123-4567", "source": "referral"},
		{"name": "Nobody", "phone": "123"},
	}})
	require.Equal(t, http.StatusOK, w.Code)

	var out struct {
		Leads []struct {
			Name      string `json:"name"`
			Direction string `json:"direction"`
			RC        struct {
				CallsToday     int  `json:"calls_today"`
				CallsYesterday int  `json:"calls_yesterday"`
				SMSToday       int  `json:"sms_today"`
				HasLongCall    bool `json:"has_long_call"`
			} `json:"rc"`
		} `json:"leads"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Len(t, out.Leads, 2)

	ada := out.Leads[0]
	assert.Equal(t, 1, ada.RC.CallsToday)
	assert.Equal(t, 1, ada.RC.CallsYesterday)
	assert.Equal(t, 1, ada.RC.SMSToday)
	assert.True(t, ada.RC.HasLongCall)
	assert.Equal(t, "call_back", ada.Direction)

	assert.Zero(t, out.Leads[1].RC.CallsToday)
}

func TestEnrichLeads_BadJSON(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/leads/enrich", bytes.NewBufferString("{"))
	pair, err := f.tokens.IssuePair(time.Now(), "u", rbac.RoleRep)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetContact(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, rbac.RoleRep, http.MethodGet, "/v1/contacts/+15551234567", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var out struct {
		Phone string `json:"phone"`
		RC    struct {
			CallsTotal int `json:"calls_total"`
		} `json:"rc"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, "5551234567", out.Phone)
	assert.Equal(t, 2, out.RC.CallsTotal)

	w = f.do(t, rbac.RoleRep, http.MethodGet, "/v1/contacts/nope", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Empty(t, out.Phone)
	assert.Zero(t, out.RC.CallsTotal)
}

func TestSendSMS(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, rbac.RoleRep, http.MethodPost, "/v1/sms", gin.H{"to": "555-123-4567", "text": "hi"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message_id":"msg-1","status":"Queued"}`, w.Body.String())
	require.Len(t, f.sender.got, 1)
	assert.Equal(t, "5559990000", f.sender.got[0].From)

	events := f.auditor.Events()
	require.Len(t, events, 1)
	assert.Equal(t, audit.EventTypeSMSSent, events[0].Type)
	assert.Equal(t, "user-1", events[0].ActorUserID)
	assert.Equal(t, rbac.RoleRep, events[0].ActorRole)
}

func TestSendSMS_Errors(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, rbac.RoleRep, http.MethodPost, "/v1/sms", gin.H{"to": "12", "text": "hi"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	f.sender.err = telephony.ErrEmptyMessage
	w = f.do(t, rbac.RoleRep, http.MethodPost, "/v1/sms", gin.H{"to": "5551234567"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	f.sender.err = &resilience.TransientError{Err: telephony.ErrRateLimited, StatusCode: http.StatusTooManyRequests}
	w = f.do(t, rbac.RoleRep, http.MethodPost, "/v1/sms", gin.H{"to": "5551234567", "text": "hi"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	f.sender.err = &telephony.APIError{StatusCode: http.StatusBadRequest, Message: "nope"}
	w = f.do(t, rbac.RoleRep, http.MethodPost, "/v1/sms", gin.H{"to": "5551234567", "text": "hi"})
	assert.Equal(t, http.StatusBadGateway, w.Code)

	assert.Empty(t, f.auditor.Events())
}

func TestRecentAudit(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, rbac.RoleRep, http.MethodPost, "/v1/sms", gin.H{"to": "5551234567", "text": "hi"})
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, rbac.RoleRep, http.MethodGet, "/v1/audit", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, rbac.RoleManager, http.MethodGet, "/v1/audit?type=sms_sent&limit=10", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var out struct {
		Events []audit.Event `json:"events"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Len(t, out.Events, 1)

	w = f.do(t, rbac.RoleManager, http.MethodGet, "/v1/audit?limit=0", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestActivityReport(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, rbac.RoleManager, http.MethodGet, "/v1/reports/activity?from=2025-03-03", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var out reporting.ActivitySummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Len(t, out.Days, 2)
	assert.Equal(t, "2025-03-04", out.To)
	assert.Equal(t, 2, out.Totals.Calls)

	w = f.do(t, rbac.RoleManager, http.MethodGet, "/v1/reports/activity?from=bad", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, rbac.RoleRep, http.MethodGet, "/v1/reports/activity", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
