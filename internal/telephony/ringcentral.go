package telephony

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"leadbot/internal/calls"
	"leadbot/internal/phone"
	"leadbot/internal/resilience"
	"leadbot/internal/sms"
)

const (
	callLogPath     = "/restapi/v1.0/account/~/call-log"
	exportPath      = "/restapi/v1.0/account/~/message-store-report"
	sendSMSPath     = "/restapi/v1.0/account/~/extension/~/sms"
	maxPerPage      = 1000
	defaultPerPage  = 250
	maxErrorBodyLen = 4 << 10
)

// Config configures the RingCentral REST adapter.
type Config struct {
	ServerURL    string
	ClientID     string
	ClientSecret string
	// RefreshToken drives the OAuth2 refresh flow. AccessToken is used as a
	// fixed bearer when no refresh token is configured.
	RefreshToken string
	AccessToken  string

	// RequestsPerSecond paces every outgoing call. Burst defaults to 1.
	RequestsPerSecond float64
	Burst             int

	Timeout  time.Duration
	Location *time.Location

	// HTTPClient overrides the transport for API and token calls.
	HTTPClient *http.Client

	// Tokens persists rotated refresh tokens. Without it every new process
	// starts from RefreshToken again.
	Tokens TokenStore
}

// Client talks to the RingCentral REST API.
type Client struct {
	base    string
	hc      *http.Client
	tokens  refreshableSource
	limiter *rate.Limiter
	loc     *time.Location
}

var _ Provider = (*Client)(nil)

func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.ServerURL) == "" {
		return nil, eris.New("telephony: server url is required")
	}
	if cfg.RefreshToken == "" && cfg.AccessToken == "" {
		return nil, eris.New("telephony: refresh token or access token is required")
	}

	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}

	var tokens refreshableSource
	if cfg.RefreshToken != "" {
		src := newRefreshTokenSource(ctx, cfg.ServerURL, cfg.ClientID, cfg.ClientSecret, cfg.RefreshToken, hc)
		if cfg.Tokens != nil {
			if err := src.restore(ctx, cfg.Tokens); err != nil {
				return nil, err
			}
		}
		tokens = src
	} else {
		tokens = staticSource{oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.AccessToken, TokenType: "Bearer"})}
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}

	return &Client{
		base:    strings.TrimRight(cfg.ServerURL, "/"),
		hc:      hc,
		tokens:  tokens,
		limiter: rate.NewLimiter(limit, burst),
		loc:     loc,
	}, nil
}

// CallLog fetches one page of the account call log.
func (c *Client) CallLog(ctx context.Context, req CallLogRequest) (CallLogPage, error) {
	page := max(req.Page, 1)
	perPage := req.PerPage
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	perPage = min(perPage, maxPerPage)

	q := url.Values{}
	q.Set("view", "Simple")
	q.Set("dateFrom", req.From.UTC().Format(time.RFC3339))
	q.Set("dateTo", req.To.UTC().Format(time.RFC3339))
	q.Set("page", strconv.Itoa(page))
	q.Set("perPage", strconv.Itoa(perPage))

	var resp callLogResponse
	if err := c.doJSON(ctx, http.MethodGet, callLogPath, q, nil, &resp); err != nil {
		return CallLogPage{}, err
	}

	rows := make([]calls.Row, 0, len(resp.Records))
	for _, r := range resp.Records {
		rows = append(rows, r.toRow(c.loc))
	}
	return CallLogPage{Rows: rows, Paging: resp.Paging}, nil
}

// CreateMessageExport submits a message-store export job for [from, to).
func (c *Client) CreateMessageExport(ctx context.Context, from, to time.Time) (ExportTask, error) {
	body := map[string]any{
		"dateFrom":     from.UTC().Format(time.RFC3339),
		"dateTo":       to.UTC().Format(time.RFC3339),
		"messageTypes": []string{"SMS"},
	}
	var resp exportTaskResponse
	if err := c.doJSON(ctx, http.MethodPost, exportPath, nil, body, &resp); err != nil {
		return ExportTask{}, err
	}
	return resp.toTask(), nil
}

// GetMessageExport reads the status of an export job. Completed tasks also
// carry their archive URIs.
func (c *Client) GetMessageExport(ctx context.Context, id string) (ExportTask, error) {
	if id == "" {
		return ExportTask{}, eris.New("telephony: export task id is required")
	}
	var resp exportTaskResponse
	if err := c.doJSON(ctx, http.MethodGet, exportPath+"/"+url.PathEscape(id), nil, nil, &resp); err != nil {
		return ExportTask{}, err
	}
	task := resp.toTask()
	if task.Status != ExportCompleted || len(task.ArchiveURIs) > 0 {
		return task, nil
	}

	var archive archiveResponse
	if err := c.doJSON(ctx, http.MethodGet, exportPath+"/"+url.PathEscape(id)+"/archive", nil, nil, &archive); err != nil {
		return ExportTask{}, err
	}
	for _, r := range archive.Records {
		task.ArchiveURIs = append(task.ArchiveURIs, r.URI)
	}
	return task, nil
}

// DownloadMessageExport fetches every archive of a completed task and parses
// the messages into SMS rows.
func (c *Client) DownloadMessageExport(ctx context.Context, task ExportTask) ([]sms.Row, error) {
	if task.Status != ExportCompleted {
		return nil, eris.Errorf("telephony: export %s not completed (status %s)", task.ID, task.Status)
	}
	var out []sms.Row
	for _, uri := range task.ArchiveURIs {
		data, err := c.download(ctx, uri)
		if err != nil {
			return nil, err
		}
		rows, err := parseArchive(data, c.loc)
		if err != nil {
			return nil, eris.Wrapf(err, "telephony: parse export archive %s", task.ID)
		}
		out = append(out, rows...)
	}
	return out, nil
}

// SendSMS sends one text from one of the account's numbers.
func (c *Client) SendSMS(ctx context.Context, req SendSMSRequest) (SendSMSResult, error) {
	from, to := phone.E164(req.From), phone.E164(req.To)
	if from == "" || to == "" {
		return SendSMSResult{}, ErrInvalidPhone
	}
	if strings.TrimSpace(req.Text) == "" {
		return SendSMSResult{}, ErrEmptyMessage
	}

	body := map[string]any{
		"from": map[string]string{"phoneNumber": from},
		"to":   []map[string]string{{"phoneNumber": to}},
		"text": req.Text,
	}
	var resp struct {
		ID            json.Number `json:"id"`
		MessageStatus string      `json:"messageStatus"`
	}
	if err := c.doJSON(ctx, http.MethodPost, sendSMSPath, nil, body, &resp); err != nil {
		return SendSMSResult{}, err
	}
	return SendSMSResult{MessageID: resp.ID.String(), Status: resp.MessageStatus}, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, q url.Values, body, out any) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return eris.Wrap(err, "telephony: encode request")
		}
		payload = b
	}

	u := c.base + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	resp, err := c.send(ctx, method, u, payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return eris.Wrapf(err, "telephony: decode %s %s", method, path)
	}
	return nil
}

func (c *Client) download(ctx context.Context, uri string) ([]byte, error) {
	if !strings.HasPrefix(uri, "http://") && !strings.HasPrefix(uri, "https://") {
		uri = c.base + uri
	}
	resp, err := c.send(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "telephony: read export archive")
	}
	return data, nil
}

// send issues one paced, authenticated request. A 401 invalidates the token
// and retries exactly once.
func (c *Client) send(ctx context.Context, method, u string, payload []byte) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "telephony: rate limiter")
		}
		tok, err := c.tokens.Token()
		if err != nil {
			return nil, err
		}

		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, u, body)
		if err != nil {
			return nil, eris.Wrap(err, "telephony: build request")
		}
		tok.SetAuthHeader(req)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.hc.Do(req)
		if err != nil {
			if ctx.Err() == nil && resilience.IsTransient(err) {
				return nil, resilience.NewTransientError(eris.Wrapf(err, "telephony: %s", method), 0)
			}
			return nil, eris.Wrapf(err, "telephony: %s %s", method, req.URL.Path)
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}

		if resp.StatusCode == http.StatusUnauthorized && attempt == 0 {
			drain(resp)
			zap.L().Info("telephony access token rejected, refreshing", zap.String("path", req.URL.Path))
			c.tokens.Invalidate()
			continue
		}
		return nil, c.statusError(resp, method, req.URL.Path)
	}
}

func (c *Client) statusError(resp *http.Response, method, path string) error {
	defer drain(resp)

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusTooManyRequests:
		return &resilience.TransientError{
			Err:        eris.Wrapf(ErrRateLimited, "%s %s", method, path),
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	apiErr := &APIError{StatusCode: resp.StatusCode, Method: method, Path: path}
	var body struct {
		ErrorCode string `json:"errorCode"`
		Message   string `json:"message"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxErrorBodyLen)).Decode(&body); err == nil {
		apiErr.ErrorCode = body.ErrorCode
		apiErr.Message = body.Message
	}
	if resilience.IsTransientHTTPStatus(resp.StatusCode) {
		return resilience.NewTransientError(apiErr, resp.StatusCode)
	}
	return apiErr
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBodyLen))
	_ = resp.Body.Close()
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
