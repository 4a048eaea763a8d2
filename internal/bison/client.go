// Package bison is the EmailBison REST API client. It normalizes the
// API's varying response shapes into Envelope maps and maps HTTP failure
// classes onto a small typed error taxonomy.
package bison

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/emailbison-cli/internal/pkg/httpretry"
	"github.com/ignite/emailbison-cli/internal/pkg/logger"
)

// Config holds EmailBison API connection settings.
type Config struct {
	BaseURL        string
	APIToken       string
	TimeoutSeconds int
	Retries        int

	CampaignsPath    string
	CampaignsV11Path string
	SenderEmailsPath string
}

// Timeout returns the per-request timeout as a duration.
func (c Config) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 20 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Client is the EmailBison API client. It holds one long-lived HTTP
// client reused across calls; callers must Close it when done.
type Client struct {
	cfg        Config
	base       *http.Client
	httpClient httpretry.HTTPDoer
}

// NewClient creates a new EmailBison API client. When cfg.Retries > 0 the
// underlying client is wrapped with retry logic for transient 5xx and
// network failures; rate limiting and other client errors always surface
// immediately.
func NewClient(cfg Config) *Client {
	if cfg.CampaignsPath == "" {
		cfg.CampaignsPath = "/api/campaigns"
	}
	if cfg.CampaignsV11Path == "" {
		cfg.CampaignsV11Path = "/api/campaigns/v1.1"
	}
	if cfg.SenderEmailsPath == "" {
		cfg.SenderEmailsPath = "/api/sender-emails"
	}

	base := &http.Client{Timeout: cfg.Timeout()}
	var doer httpretry.HTTPDoer = base
	if cfg.Retries > 0 {
		doer = httpretry.NewRetryClient(base, cfg.Retries)
	}
	return &Client{cfg: cfg, base: base, httpClient: doer}
}

// SetHTTPClient sets a custom HTTP client (useful for testing).
func (c *Client) SetHTTPClient(client httpretry.HTTPDoer) {
	c.httpClient = client
}

// Close releases the client's idle connections. Safe to call on every
// exit path.
func (c *Client) Close() {
	c.base.CloseIdleConnections()
}

// RedactedAuth returns the Authorization header value with the token
// masked, for --debug output.
func (c *Client) RedactedAuth() string {
	return "Bearer " + logger.RedactToken(c.cfg.APIToken)
}

// request performs one API call and normalizes its outcome. The returned
// DebugInfo is valid even on error: StatusCode is 0 when no response was
// received, so failed calls can still be recorded in audit trails.
func (c *Client) request(ctx context.Context, method, path string, jsonBody interface{}, query url.Values) (Envelope, DebugInfo, error) {
	reqURL := c.cfg.BaseURL + path
	if len(query) > 0 {
		reqURL = reqURL + "?" + query.Encode()
	}
	dbg := DebugInfo{Method: method, URL: reqURL}

	var reqBody io.Reader
	if jsonBody != nil {
		data, err := json.Marshal(jsonBody)
		if err != nil {
			return nil, dbg, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
	if err != nil {
		return nil, dbg, fmt.Errorf("failed to create request: %w", err)
	}
	if jsonBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.setCommonHeaders(req)

	return c.do(req, dbg)
}

// do executes a prepared request and maps the response through the error
// taxonomy. Exactly one error class is produced per failed call.
func (c *Client) do(req *http.Request, dbg DebugInfo) (Envelope, DebugInfo, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, dbg, &NetworkError{Msg: "network error calling EmailBison", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, dbg, &NetworkError{Msg: "failed to read EmailBison response", Err: err}
	}

	dbg.StatusCode = resp.StatusCode
	dbg.RequestID = resp.Header.Get("X-Request-Id")
	if dbg.RequestID == "" {
		dbg.RequestID = resp.Header.Get("X-Correlation-Id")
	}

	logger.Debug("emailbison call",
		"method", dbg.Method,
		"url", dbg.URL,
		"status", strconv.Itoa(dbg.StatusCode),
		"request_id", dbg.RequestID,
	)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, dbg, &AuthError{StatusCode: resp.StatusCode}
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, dbg, &APIError{
			Msg:        "rate limited (429).",
			StatusCode: resp.StatusCode,
			RetryAfter: resp.Header.Get("Retry-After"),
			Details:    ParseEnvelope(body),
		}
	case resp.StatusCode >= 400:
		return nil, dbg, &APIError{
			StatusCode: resp.StatusCode,
			Details:    ParseEnvelope(body),
		}
	}

	return ParseEnvelope(body), dbg, nil
}

func (c *Client) setCommonHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIToken)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())
}

// ========== Campaign Methods ==========

// CreateCampaign creates a campaign with the given name and type.
func (c *Client) CreateCampaign(ctx context.Context, name, campaignType string) (Envelope, DebugInfo, error) {
	payload := map[string]interface{}{"name": name, "type": campaignType}
	return c.request(ctx, http.MethodPost, c.cfg.CampaignsPath, payload, nil)
}

// UpdateCampaignSettings pushes a settings update for a campaign.
func (c *Client) UpdateCampaignSettings(ctx context.Context, campaignID int, payload interface{}) (Envelope, DebugInfo, error) {
	path := fmt.Sprintf("%s/%d/update", c.cfg.CampaignsPath, campaignID)
	return c.request(ctx, http.MethodPatch, path, payload, nil)
}

// CreateCampaignSchedule sets the sending schedule for a campaign.
func (c *Client) CreateCampaignSchedule(ctx context.Context, campaignID int, payload interface{}) (Envelope, DebugInfo, error) {
	path := fmt.Sprintf("%s/%d/schedule", c.cfg.CampaignsPath, campaignID)
	return c.request(ctx, http.MethodPost, path, payload, nil)
}

// CampaignDetails fetches a single campaign.
func (c *Client) CampaignDetails(ctx context.Context, campaignID int) (Envelope, DebugInfo, error) {
	path := fmt.Sprintf("%s/%d", c.cfg.CampaignsPath, campaignID)
	return c.request(ctx, http.MethodGet, path, nil, nil)
}

// ListCampaignsFilter holds optional filters for ListCampaigns.
type ListCampaignsFilter struct {
	Search string
	Status string
	TagIDs []int
}

// ListCampaigns lists campaigns. EmailBison accepts an optional request
// body on this GET (unusual, but documented).
func (c *Client) ListCampaigns(ctx context.Context, filter ListCampaignsFilter) (Envelope, DebugInfo, error) {
	payload := map[string]interface{}{}
	if filter.Search != "" {
		payload["search"] = filter.Search
	}
	if filter.Status != "" {
		payload["status"] = filter.Status
	}
	if len(filter.TagIDs) > 0 {
		payload["tag_ids"] = filter.TagIDs
	}
	var body interface{}
	if len(payload) > 0 {
		body = payload
	}
	return c.request(ctx, http.MethodGet, c.cfg.CampaignsPath, body, nil)
}

// PauseCampaign pauses sending for a campaign.
func (c *Client) PauseCampaign(ctx context.Context, campaignID int) (Envelope, DebugInfo, error) {
	path := fmt.Sprintf("%s/%d/pause", c.cfg.CampaignsPath, campaignID)
	return c.request(ctx, http.MethodPatch, path, nil, nil)
}

// ResumeCampaign starts (or resumes) sending for a campaign.
func (c *Client) ResumeCampaign(ctx context.Context, campaignID int) (Envelope, DebugInfo, error) {
	path := fmt.Sprintf("%s/%d/resume", c.cfg.CampaignsPath, campaignID)
	return c.request(ctx, http.MethodPatch, path, nil, nil)
}

// ArchiveCampaign archives a campaign.
func (c *Client) ArchiveCampaign(ctx context.Context, campaignID int) (Envelope, DebugInfo, error) {
	path := fmt.Sprintf("%s/%d/archive", c.cfg.CampaignsPath, campaignID)
	return c.request(ctx, http.MethodPatch, path, nil, nil)
}

// CampaignStats fetches aggregate stats for a date range (YYYY-MM-DD).
func (c *Client) CampaignStats(ctx context.Context, campaignID int, startDate, endDate string) (Envelope, DebugInfo, error) {
	path := fmt.Sprintf("%s/%d/stats", c.cfg.CampaignsPath, campaignID)
	payload := map[string]interface{}{"start_date": startDate, "end_date": endDate}
	return c.request(ctx, http.MethodPost, path, payload, nil)
}

// RepliesFilter holds optional filters for CampaignReplies.
type RepliesFilter struct {
	Search        string
	Status        string
	Folder        string
	Read          *bool
	SenderEmailID int
	LeadID        int
	TagIDs        []int
}

// CampaignReplies lists replies received by a campaign.
func (c *Client) CampaignReplies(ctx context.Context, campaignID int, filter RepliesFilter) (Envelope, DebugInfo, error) {
	path := fmt.Sprintf("%s/%d/replies", c.cfg.CampaignsPath, campaignID)
	query := url.Values{}
	if filter.Search != "" {
		query.Set("search", filter.Search)
	}
	if filter.Status != "" {
		query.Set("status", filter.Status)
	}
	if filter.Folder != "" {
		query.Set("folder", filter.Folder)
	}
	if filter.Read != nil {
		query.Set("read", strconv.FormatBool(*filter.Read))
	}
	if filter.SenderEmailID != 0 {
		query.Set("sender_email_id", strconv.Itoa(filter.SenderEmailID))
	}
	if filter.LeadID != 0 {
		query.Set("lead_id", strconv.Itoa(filter.LeadID))
	}
	for _, id := range filter.TagIDs {
		query.Add("tag_ids", strconv.Itoa(id))
	}
	return c.request(ctx, http.MethodGet, path, nil, query)
}

// ========== Sequence Methods (v1.1) ==========

// GetSequenceSteps fetches a campaign's sequence steps.
func (c *Client) GetSequenceSteps(ctx context.Context, campaignID int) (Envelope, DebugInfo, error) {
	path := fmt.Sprintf("%s/%d/sequence-steps", c.cfg.CampaignsV11Path, campaignID)
	return c.request(ctx, http.MethodGet, path, nil, nil)
}

// CreateSequenceSteps creates a sequence from scratch for a campaign.
func (c *Client) CreateSequenceSteps(ctx context.Context, campaignID int, payload interface{}) (Envelope, DebugInfo, error) {
	path := fmt.Sprintf("%s/%d/sequence-steps", c.cfg.CampaignsV11Path, campaignID)
	return c.request(ctx, http.MethodPost, path, payload, nil)
}

// UpdateSequenceSteps updates an existing sequence by sequence id.
func (c *Client) UpdateSequenceSteps(ctx context.Context, sequenceID int, payload interface{}) (Envelope, DebugInfo, error) {
	path := fmt.Sprintf("%s/sequence-steps/%d", c.cfg.CampaignsV11Path, sequenceID)
	return c.request(ctx, http.MethodPut, path, payload, nil)
}

// DeleteSequenceStep removes a single sequence step.
func (c *Client) DeleteSequenceStep(ctx context.Context, stepID int) (Envelope, DebugInfo, error) {
	path := fmt.Sprintf("/api/campaigns/sequence-steps/%d", stepID)
	return c.request(ctx, http.MethodDelete, path, nil, nil)
}

// TestSequenceStepEmail sends a test email for one sequence step.
func (c *Client) TestSequenceStepEmail(ctx context.Context, stepID int, email string) (Envelope, DebugInfo, error) {
	path := fmt.Sprintf("/api/campaigns/sequence-steps/%d/test-email", stepID)
	return c.request(ctx, http.MethodPost, path, map[string]interface{}{"email": email}, nil)
}

// ========== Lead Methods ==========

// AttachLeadList attaches an existing lead list to a campaign.
func (c *Client) AttachLeadList(ctx context.Context, campaignID, leadListID int, allowParallelSending bool) (Envelope, DebugInfo, error) {
	path := fmt.Sprintf("%s/%d/leads/attach-lead-list", c.cfg.CampaignsPath, campaignID)
	payload := map[string]interface{}{
		"lead_list_id":           leadListID,
		"allow_parallel_sending": allowParallelSending,
	}
	return c.request(ctx, http.MethodPost, path, payload, nil)
}

// AttachLeads attaches individual leads to a campaign by id.
func (c *Client) AttachLeads(ctx context.Context, campaignID int, leadIDs []int, allowParallelSending bool) (Envelope, DebugInfo, error) {
	path := fmt.Sprintf("%s/%d/leads/attach-leads", c.cfg.CampaignsPath, campaignID)
	payload := map[string]interface{}{
		"lead_ids":               leadIDs,
		"allow_parallel_sending": allowParallelSending,
	}
	return c.request(ctx, http.MethodPost, path, payload, nil)
}

// StopFutureEmails stops future sends to the given leads in a campaign.
func (c *Client) StopFutureEmails(ctx context.Context, campaignID int, leadIDs []int) (Envelope, DebugInfo, error) {
	path := fmt.Sprintf("%s/%d/leads/stop-future-emails", c.cfg.CampaignsPath, campaignID)
	return c.request(ctx, http.MethodPost, path, map[string]interface{}{"lead_ids": leadIDs}, nil)
}

// GetLeadList fetches a lead list by id. EmailBison deployments expose
// this under two historical paths; only a 404 triggers the fallback — any
// other failure aborts immediately.
func (c *Client) GetLeadList(ctx context.Context, leadListID int) (Envelope, DebugInfo, error) {
	candidatePaths := []string{
		fmt.Sprintf("/api/leads/lists/%d", leadListID),
		fmt.Sprintf("/api/lead-lists/%d", leadListID),
	}

	var lastErr *APIError
	var lastDbg DebugInfo
	for _, path := range candidatePaths {
		env, dbg, err := c.request(ctx, http.MethodGet, path, nil, nil)
		if err == nil {
			return env, dbg, nil
		}
		apiErr, ok := err.(*APIError)
		if !ok || apiErr.StatusCode != http.StatusNotFound {
			return nil, dbg, err
		}
		lastErr = apiErr
		lastDbg = dbg
	}

	composed := &APIError{
		Msg: fmt.Sprintf("unable to fetch lead list %d; no supported endpoint found.", leadListID),
	}
	if lastErr != nil {
		composed.StatusCode = lastErr.StatusCode
		composed.Details = lastErr.Details
	}
	return nil, lastDbg, composed
}

// UploadLeadsCSV submits a CSV of leads as a multipart form, creating a
// new lead list that the API processes asynchronously. columnsToMap maps
// logical lead fields (first_name, last_name, email) to CSV column names.
func (c *Client) UploadLeadsCSV(ctx context.Context, name, csvPath string, columnsToMap map[string]string) (Envelope, DebugInfo, error) {
	reqURL := c.cfg.BaseURL + "/api/leads/bulk/csv"
	dbg := DebugInfo{Method: http.MethodPost, URL: reqURL}

	fh, err := os.Open(csvPath)
	if err != nil {
		return nil, dbg, &NetworkError{Msg: fmt.Sprintf("CSV file not found: %s", csvPath), Err: err}
	}
	defer fh.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := writer.WriteField("name", name); err != nil {
		return nil, dbg, fmt.Errorf("failed to build multipart form: %w", err)
	}

	fields := make([]string, 0, len(columnsToMap))
	for field := range columnsToMap {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		key := fmt.Sprintf("columnsToMap[0][%s]", field)
		if err := writer.WriteField(key, columnsToMap[field]); err != nil {
			return nil, dbg, fmt.Errorf("failed to build multipart form: %w", err)
		}
	}

	part, err := writer.CreateFormFile("csv", filepath.Base(csvPath))
	if err != nil {
		return nil, dbg, fmt.Errorf("failed to build multipart form: %w", err)
	}
	if _, err := io.Copy(part, fh); err != nil {
		return nil, dbg, &NetworkError{Msg: fmt.Sprintf("failed to read CSV file: %s", csvPath), Err: err}
	}
	if err := writer.Close(); err != nil {
		return nil, dbg, fmt.Errorf("failed to build multipart form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, &buf)
	if err != nil {
		return nil, dbg, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	c.setCommonHeaders(req)

	return c.do(req, dbg)
}

// ========== Sender Email Methods ==========

// SenderEmailFilter holds server-side filters for ListSenderEmails.
type SenderEmailFilter struct {
	Search         string
	TagIDs         []int
	ExcludedTagIDs []int
	WithoutTags    *bool
}

// ListSenderEmails lists sender email accounts for the workspace.
func (c *Client) ListSenderEmails(ctx context.Context, filter SenderEmailFilter) (Envelope, DebugInfo, error) {
	query := url.Values{}
	if filter.Search != "" {
		query.Set("search", filter.Search)
	}
	for _, id := range filter.TagIDs {
		query.Add("tag_ids", strconv.Itoa(id))
	}
	for _, id := range filter.ExcludedTagIDs {
		query.Add("excluded_tag_ids", strconv.Itoa(id))
	}
	if filter.WithoutTags != nil {
		query.Set("without_tags", strconv.FormatBool(*filter.WithoutTags))
	}
	return c.request(ctx, http.MethodGet, c.cfg.SenderEmailsPath, nil, query)
}

// GetCampaignSenderEmails lists sender emails attached to a campaign.
func (c *Client) GetCampaignSenderEmails(ctx context.Context, campaignID int) (Envelope, DebugInfo, error) {
	path := fmt.Sprintf("%s/%d/sender-emails", c.cfg.CampaignsPath, campaignID)
	return c.request(ctx, http.MethodGet, path, nil, nil)
}

// AttachSenderEmails attaches sender email accounts to a campaign.
// The API expects the ids as strings.
func (c *Client) AttachSenderEmails(ctx context.Context, campaignID int, senderEmailIDs []int) (Envelope, DebugInfo, error) {
	path := fmt.Sprintf("%s/%d/attach-sender-emails", c.cfg.CampaignsPath, campaignID)
	return c.request(ctx, http.MethodPost, path, senderEmailIDPayload(senderEmailIDs), nil)
}

// RemoveSenderEmails detaches sender email accounts from a campaign.
func (c *Client) RemoveSenderEmails(ctx context.Context, campaignID int, senderEmailIDs []int) (Envelope, DebugInfo, error) {
	path := fmt.Sprintf("%s/%d/remove-sender-emails", c.cfg.CampaignsPath, campaignID)
	return c.request(ctx, http.MethodDelete, path, senderEmailIDPayload(senderEmailIDs), nil)
}

func senderEmailIDPayload(ids []int) map[string]interface{} {
	strIDs := make([]string, len(ids))
	for i, id := range ids {
		strIDs[i] = strconv.Itoa(id)
	}
	return map[string]interface{}{"sender_email_ids": strIDs}
}
