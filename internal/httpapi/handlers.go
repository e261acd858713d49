package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"leadbot/internal/audit"
	"leadbot/internal/auth"
	"leadbot/internal/contacts"
	"leadbot/internal/enrich"
	"leadbot/internal/eventlog"
	"leadbot/internal/phone"
	"leadbot/internal/reporting"
	"leadbot/internal/resilience"
	"leadbot/internal/syncer"
	"leadbot/internal/telephony"
	"leadbot/internal/timefmt"
	"leadbot/pkg/logger"
)

// maxEnrichLeads bounds one enrichment request.
const maxEnrichLeads = 5000

type SyncRunner interface {
	Start(ctx context.Context, req syncer.Request) (string, error)
	Progress() syncer.ProgressSnapshot
}

type ActivityReporter interface {
	Activity(ctx context.Context, req reporting.ActivityRequest) (reporting.ActivitySummary, error)
}

type ContactIndex interface {
	Index(ctx context.Context, now time.Time) (contacts.Index, error)
	Lookup(ctx context.Context, raw string, now time.Time) (contacts.Aggregate, error)
	Location() *time.Location
}

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Sync     SyncRunner
	Contacts ContactIndex
	SMS      telephony.SMSSender
	Audit    *audit.Service
	Reports  ActivityReporter

	// FromNumber is used when a send request does not name a sender.
	FromNumber   string
	HistoryLimit int
	Rules        enrich.RuleConfig

	Now func() time.Time
}

func (h Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h Handlers) enrichOptions() enrich.Options {
	return enrich.Options{
		Now:          h.now(),
		Location:     h.Contacts.Location(),
		HistoryLimit: h.HistoryLimit,
		Rules:        h.Rules,
	}
}

func fail(c *gin.Context, status int, msg string, err error) {
	if err != nil {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func (h Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// --- Sync ---

type syncRequest struct {
	Kind string `json:"kind"`
	Day  string `json:"day"`
}

func (h Handlers) SyncProgress(c *gin.Context) {
	c.JSON(http.StatusOK, h.Sync.Progress())
}

func (h Handlers) StartSync(c *gin.Context) {
	var req syncRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		fail(c, http.StatusBadRequest, "invalid json", nil)
		return
	}
	kind, err := syncer.ParseKind(req.Kind)
	if err != nil {
		fail(c, http.StatusBadRequest, "kind must be calls, sms or all", nil)
		return
	}

	runID, err := h.Sync.Start(c.Request.Context(), syncer.Request{Kind: kind, Day: req.Day})
	switch {
	case err == nil:
	case errors.Is(err, syncer.ErrAlreadyRunning):
		fail(c, http.StatusConflict, "a sync is already running", nil)
		return
	case errors.Is(err, eventlog.ErrInvalidDay):
		fail(c, http.StatusBadRequest, "day must be YYYY-MM-DD", nil)
		return
	default:
		fail(c, http.StatusInternalServerError, "sync start failed", err)
		return
	}

	logger.FromGin(c).Info("sync started", zap.String("run_id", runID), zap.String("kind", string(kind)))
	c.JSON(http.StatusAccepted, gin.H{"run_id": runID, "kind": kind})
}

// --- Contacts ---

type enrichRequest struct {
	Leads []enrich.Lead `json:"leads"`
}

func (h Handlers) EnrichLeads(c *gin.Context) {
	var req enrichRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if len(req.Leads) > maxEnrichLeads {
		fail(c, http.StatusRequestEntityTooLarge, "too many leads", nil)
		return
	}

	opts := h.enrichOptions()
	idx, err := h.Contacts.Index(c.Request.Context(), opts.Now)
	if err != nil {
		fail(c, http.StatusInternalServerError, "contact index unavailable", err)
		return
	}
	enrich.Enrich(req.Leads, idx, opts)
	if req.Leads == nil {
		req.Leads = []enrich.Lead{}
	}
	c.JSON(http.StatusOK, gin.H{"leads": req.Leads})
}

func (h Handlers) GetContact(c *gin.Context) {
	raw := c.Param("phone")
	opts := h.enrichOptions()

	agg, err := h.Contacts.Lookup(c.Request.Context(), raw, opts.Now)
	if err != nil {
		fail(c, http.StatusInternalServerError, "contact index unavailable", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"phone": phone.Normalize(raw),
		"rc":    enrich.View(agg, opts),
	})
}

// --- SMS ---

type sendSMSRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
	Text string `json:"text"`
}

func (h Handlers) SendSMS(c *gin.Context) {
	var req sendSMSRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if req.From == "" {
		req.From = h.FromNumber
	}
	to := phone.Normalize(req.To)
	if to == "" {
		fail(c, http.StatusBadRequest, "invalid phone", nil)
		return
	}

	res, err := h.SMS.SendSMS(c.Request.Context(), telephony.SendSMSRequest{From: req.From, To: req.To, Text: req.Text})
	switch {
	case err == nil:
	case errors.Is(err, telephony.ErrInvalidPhone):
		fail(c, http.StatusBadRequest, "invalid phone", nil)
		return
	case errors.Is(err, telephony.ErrEmptyMessage):
		fail(c, http.StatusBadRequest, "text required", nil)
		return
	case resilience.IsRateLimited(err):
		fail(c, http.StatusTooManyRequests, "rate limited, retry later", err)
		return
	default:
		fail(c, http.StatusBadGateway, "send failed", err)
		return
	}

	if h.Audit != nil {
		uid, _ := auth.UserID(c.Request.Context())
		role, _ := auth.Role(c.Request.Context())
		h.Audit.LogSMSSent(c.Request.Context(), uid, role, to, res.MessageID)
	}
	c.JSON(http.StatusOK, gin.H{"message_id": res.MessageID, "status": res.Status})
}

// --- Reports ---

// ActivityReport summarizes the event log per day. Both bounds default to
// today.
func (h Handlers) ActivityReport(c *gin.Context) {
	if h.Reports == nil {
		fail(c, http.StatusInternalServerError, "reports not configured", nil)
		return
	}
	today := timefmt.DayKey(h.now(), h.Contacts.Location())
	req := reporting.ActivityRequest{From: c.DefaultQuery("from", today), To: c.DefaultQuery("to", today)}

	out, err := h.Reports.Activity(c.Request.Context(), req)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, out)
	case errors.Is(err, reporting.ErrInvalidRequest):
		fail(c, http.StatusBadRequest, "from and to must be YYYY-MM-DD, at most 31 days apart", nil)
	default:
		fail(c, http.StatusInternalServerError, "report failed", err)
	}
}

// --- Audit ---

func (h Handlers) RecentAudit(c *gin.Context) {
	if h.Audit == nil {
		fail(c, http.StatusInternalServerError, "audit not configured", nil)
		return
	}
	limit := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 500 {
			fail(c, http.StatusBadRequest, "limit must be in 1..500", nil)
			return
		}
		limit = n
	}
	events, err := h.Audit.Recent(c.Request.Context(), audit.EventType(c.Query("type")), limit)
	if err != nil {
		fail(c, http.StatusInternalServerError, "audit unavailable", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}
