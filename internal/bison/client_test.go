package bison

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testClient(serverURL string) *Client {
	return NewClient(Config{BaseURL: serverURL, APIToken: "test-token-1234"})
}

func TestParseEnvelopeShapes(t *testing.T) {
	env := ParseEnvelope([]byte(`{"data":{"id":7}}`))
	if _, ok := env["data"]; !ok {
		t.Error("Expected object body to pass through")
	}

	env = ParseEnvelope([]byte(`[1,2,3]`))
	if _, ok := env["data"].([]interface{}); !ok {
		t.Errorf("Expected array body wrapped under data, got %v", env)
	}

	env = ParseEnvelope([]byte(`plain text response`))
	if env["text"] != "plain text response" {
		t.Errorf("Expected non-JSON body wrapped under text, got %v", env)
	}
}

func TestCreateCampaign(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/api/campaigns" {
			t.Errorf("Expected /api/campaigns, got %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-token-1234" {
			t.Errorf("Wrong Authorization header: %s", r.Header.Get("Authorization"))
		}
		if r.Header.Get("X-Request-Id") == "" {
			t.Error("Missing X-Request-Id header")
		}

		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		if body["name"] != "Q3 Districts" || body["type"] != "outbound" {
			t.Errorf("Unexpected payload: %v", body)
		}

		w.Header().Set("X-Request-Id", "req-123")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{"id": 42, "name": "Q3 Districts", "status": "draft"},
		})
	}))
	defer server.Close()

	client := testClient(server.URL)
	defer client.Close()

	env, dbg, err := client.CreateCampaign(context.Background(), "Q3 Districts", "outbound")
	if err != nil {
		t.Fatalf("CreateCampaign failed: %v", err)
	}
	id, ok := env.ID()
	if !ok || id != 42 {
		t.Errorf("Expected campaign id 42, got %d (ok=%v)", id, ok)
	}
	if dbg.StatusCode != 200 {
		t.Errorf("Expected status 200 in debug info, got %d", dbg.StatusCode)
	}
	if dbg.RequestID != "req-123" {
		t.Errorf("Expected request id req-123, got %s", dbg.RequestID)
	}
}

func TestAuthError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := testClient(server.URL)
	defer client.Close()

	_, dbg, err := client.CampaignDetails(context.Background(), 1)
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("Expected AuthError, got %T: %v", err, err)
	}
	if authErr.StatusCode != 401 {
		t.Errorf("Expected status 401, got %d", authErr.StatusCode)
	}
	if !strings.Contains(err.Error(), "EMAILBISON_API_TOKEN") {
		t.Errorf("Expected remediation hint in message, got %q", err.Error())
	}
	if dbg.StatusCode != 401 {
		t.Errorf("Expected debug info recorded on failure, got %+v", dbg)
	}
}

func TestRateLimitError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"message":"slow down"}`))
	}))
	defer server.Close()

	client := testClient(server.URL)
	defer client.Close()

	_, _, err := client.CampaignDetails(context.Background(), 1)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected APIError, got %T: %v", err, err)
	}
	if !apiErr.IsRateLimit() {
		t.Error("Expected IsRateLimit to be true")
	}
	if apiErr.RetryAfter != "30" {
		t.Errorf("Expected Retry-After 30, got %q", apiErr.RetryAfter)
	}
	if !strings.Contains(apiErr.Error(), "Retry-After: 30") {
		t.Errorf("Expected Retry-After in message, got %q", apiErr.Error())
	}
}

func TestAPIErrorDetails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"message":"name has already been taken"}`))
	}))
	defer server.Close()

	client := testClient(server.URL)
	defer client.Close()

	_, _, err := client.CreateCampaign(context.Background(), "dup", "outbound")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected APIError, got %T: %v", err, err)
	}
	if apiErr.StatusCode != 422 {
		t.Errorf("Expected status 422, got %d", apiErr.StatusCode)
	}
	if apiErr.Details == nil || apiErr.Details["message"] != "name has already been taken" {
		t.Errorf("Expected parsed error details, got %v", apiErr.Details)
	}
}

func TestNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // refuse connections

	client := testClient(server.URL)
	defer client.Close()

	_, dbg, err := client.CampaignDetails(context.Background(), 1)
	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("Expected NetworkError, got %T: %v", err, err)
	}
	if dbg.StatusCode != 0 {
		t.Errorf("Expected zero status code when no response received, got %d", dbg.StatusCode)
	}
}

func TestGetLeadListFallback(t *testing.T) {
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if r.URL.Path == "/api/leads/lists/9" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{"id": 9, "status": "completed"},
		})
	}))
	defer server.Close()

	client := testClient(server.URL)
	defer client.Close()

	env, _, err := client.GetLeadList(context.Background(), 9)
	if err != nil {
		t.Fatalf("GetLeadList failed: %v", err)
	}
	if len(paths) != 2 || paths[1] != "/api/lead-lists/9" {
		t.Errorf("Expected fallback to second path, got %v", paths)
	}
	if status, _ := env.Status(); status != "completed" {
		t.Errorf("Expected status completed, got %q", status)
	}
}

func TestGetLeadListNoFallbackOnServerError(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := testClient(server.URL)
	defer client.Close()

	_, _, err := client.GetLeadList(context.Background(), 9)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected APIError, got %T: %v", err, err)
	}
	if calls != 1 {
		t.Errorf("Expected no fallback on 500, got %d calls", calls)
	}
}

func TestGetLeadListBothMissing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := testClient(server.URL)
	defer client.Close()

	_, _, err := client.GetLeadList(context.Background(), 77)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected APIError, got %T: %v", err, err)
	}
	if !strings.Contains(apiErr.Error(), "no supported endpoint") {
		t.Errorf("Expected composed message, got %q", apiErr.Error())
	}
}

func TestUploadLeadsCSV(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "springfield.csv")
	os.WriteFile(csvPath, []byte("First Name,Last Name,Email\nHomer,Simpson,homer@example.com\n"), 0o644)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/leads/bulk/csv" {
			t.Errorf("Expected /api/leads/bulk/csv, got %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("ParseMultipartForm failed: %v", err)
		}
		if r.FormValue("name") != "Springfield" {
			t.Errorf("Expected name Springfield, got %q", r.FormValue("name"))
		}
		if r.FormValue("columnsToMap[0][email]") != "Email" {
			t.Errorf("Missing email column mapping: %v", r.MultipartForm.Value)
		}
		if r.FormValue("columnsToMap[0][first_name]") != "First Name" {
			t.Errorf("Missing first_name column mapping: %v", r.MultipartForm.Value)
		}

		file, header, err := r.FormFile("csv")
		if err != nil {
			t.Fatalf("FormFile failed: %v", err)
		}
		defer file.Close()
		if header.Filename != "springfield.csv" {
			t.Errorf("Expected filename springfield.csv, got %s", header.Filename)
		}
		content, _ := io.ReadAll(file)
		if !strings.Contains(string(content), "homer@example.com") {
			t.Error("CSV content not forwarded")
		}

		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{
				"lead_list": map[string]interface{}{"id": 501, "status": "unprocessed"},
			},
		})
	}))
	defer server.Close()

	client := testClient(server.URL)
	defer client.Close()

	env, _, err := client.UploadLeadsCSV(context.Background(), "Springfield", csvPath, map[string]string{
		"first_name": "First Name",
		"last_name":  "Last Name",
		"email":      "Email",
	})
	if err != nil {
		t.Fatalf("UploadLeadsCSV failed: %v", err)
	}
	if env.Data() == nil {
		t.Fatalf("Expected data envelope, got %v", env)
	}
}

func TestUploadLeadsCSVMissingFile(t *testing.T) {
	client := testClient("http://localhost:1")
	defer client.Close()

	_, _, err := client.UploadLeadsCSV(context.Background(), "x", "/nonexistent/file.csv", nil)
	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("Expected NetworkError for missing file, got %T: %v", err, err)
	}
	if !strings.Contains(err.Error(), "CSV file not found") {
		t.Errorf("Unexpected message: %q", err.Error())
	}
}

func TestAttachSenderEmailsStringifiesIDs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string][]string
		json.NewDecoder(r.Body).Decode(&body)
		ids := body["sender_email_ids"]
		if len(ids) != 2 || ids[0] != "5" || ids[1] != "12" {
			t.Errorf("Expected string ids [5 12], got %v", ids)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"data": map[string]interface{}{"id": 1}})
	}))
	defer server.Close()

	client := testClient(server.URL)
	defer client.Close()

	_, _, err := client.AttachSenderEmails(context.Background(), 1, []int{5, 12})
	if err != nil {
		t.Fatalf("AttachSenderEmails failed: %v", err)
	}
}

func TestCoerceInt(t *testing.T) {
	cases := []struct {
		in   interface{}
		want int
		ok   bool
	}{
		{float64(7), 7, true},
		{int(3), 3, true},
		{"42", 42, true},
		{"abc", 0, false},
		{nil, 0, false},
		{json.Number("19"), 19, true},
	}
	for _, tc := range cases {
		got, ok := CoerceInt(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Errorf("CoerceInt(%v) = %d,%v; want %d,%v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}
