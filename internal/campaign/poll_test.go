package campaign

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/emailbison-cli/internal/bison"
)

func newBisonClient(t *testing.T, handler http.Handler) *bison.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := bison.NewClient(bison.Config{BaseURL: server.URL, APIToken: "test-token"})
	t.Cleanup(client.Close)
	return client
}

func leadListResponse(id int, status string) map[string]interface{} {
	return map[string]interface{}{
		"data": map[string]interface{}{"id": id, "status": status},
	}
}

func TestWaitForLeadListPollsUntilDone(t *testing.T) {
	polls := 0
	client := newBisonClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		polls++
		status := "processing"
		if polls >= 2 {
			status = "completed"
		}
		json.NewEncoder(w).Encode(leadListResponse(9, status))
	}))

	poller := Poller{Interval: 5 * time.Millisecond, Timeout: time.Second}
	status, err := poller.WaitForLeadList(context.Background(), client, 9, "unprocessed")
	require.NoError(t, err)
	assert.Equal(t, "completed", status)
	assert.Equal(t, 2, polls)
}

func TestWaitForLeadListInitialTerminal(t *testing.T) {
	client := newBisonClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no poll expected for an already-terminal status")
	}))

	poller := Poller{Interval: time.Millisecond, Timeout: time.Second}
	status, err := poller.WaitForLeadList(context.Background(), client, 9, "completed")
	require.NoError(t, err)
	assert.Equal(t, "completed", status)
}

func TestWaitForLeadListInitialFailed(t *testing.T) {
	client := newBisonClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no poll expected for an already-failed status")
	}))

	poller := Poller{Interval: time.Millisecond, Timeout: time.Second}
	_, err := poller.WaitForLeadList(context.Background(), client, 9, "failed")
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestWaitForLeadListReportedFailure(t *testing.T) {
	client := newBisonClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(leadListResponse(9, "Error"))
	}))

	poller := Poller{Interval: time.Millisecond, Timeout: time.Second}
	_, err := poller.WaitForLeadList(context.Background(), client, 9, "processing")
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, err.Error(), "processing failed")
}

func TestWaitForLeadListTimeout(t *testing.T) {
	client := newBisonClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(leadListResponse(9, "processing"))
	}))

	poller := Poller{Interval: 5 * time.Millisecond, Timeout: 30 * time.Millisecond}
	_, err := poller.WaitForLeadList(context.Background(), client, 9, "processing")
	var timeoutErr *LeadListTimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, 9, timeoutErr.LeadListID)
	assert.Contains(t, err.Error(), "timed out")
}

func TestWaitForLeadListMissingStatusKeepsPolling(t *testing.T) {
	polls := 0
	client := newBisonClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		polls++
		if polls == 1 {
			json.NewEncoder(w).Encode(map[string]interface{}{"data": map[string]interface{}{"id": 9}})
			return
		}
		json.NewEncoder(w).Encode(leadListResponse(9, "completed"))
	}))

	poller := Poller{Interval: time.Millisecond, Timeout: time.Second}
	status, err := poller.WaitForLeadList(context.Background(), client, 9, "processing")
	require.NoError(t, err)
	assert.Equal(t, "completed", status)
	assert.Equal(t, 2, polls)
}

func TestWaitForLeadListContextCancel(t *testing.T) {
	client := newBisonClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(leadListResponse(9, "processing"))
	}))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	poller := Poller{Interval: 50 * time.Millisecond, Timeout: 10 * time.Second}
	_, err := poller.WaitForLeadList(ctx, client, 9, "processing")
	require.ErrorIs(t, err, context.Canceled)
}

func TestExtractLeadListInfo(t *testing.T) {
	cases := []struct {
		name     string
		body     string
		wantID   int
		wantStat string
	}{
		{"nested under data.lead_list", `{"data":{"lead_list":{"id":11,"status":"unprocessed"}}}`, 11, "unprocessed"},
		{"flat data", `{"data":{"id":12,"status":"queued"}}`, 12, "queued"},
		{"top-level lead_list", `{"lead_list":{"id":13}}`, 13, ""},
		{"root object", `{"id":14,"status":"completed"}`, 14, "completed"},
		{"lead_list_id wins over id", `{"data":{"lead_list_id":15,"id":999}}`, 15, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := bison.ParseEnvelope([]byte(tc.body))
			id, status, err := extractLeadListInfo(env)
			require.NoError(t, err)
			assert.Equal(t, tc.wantID, id)
			assert.Equal(t, tc.wantStat, status)
		})
	}
}

func TestExtractLeadListInfoMissingID(t *testing.T) {
	env := bison.ParseEnvelope([]byte(`{"data":{"status":"unprocessed"}}`))
	_, _, err := extractLeadListInfo(env)
	var extractionErr *ExtractionError
	require.ErrorAs(t, err, &extractionErr)
}

func TestLeadListStatusBuckets(t *testing.T) {
	for _, status := range []string{"unprocessed", "Processing", " PENDING ", "queued"} {
		assert.True(t, isLeadListPending(status), fmt.Sprintf("%q should be pending", status))
	}
	for _, status := range []string{"failed", "Error"} {
		assert.True(t, isLeadListFailed(status), fmt.Sprintf("%q should be failed", status))
	}
	assert.False(t, isLeadListPending("completed"))
	assert.False(t, isLeadListFailed("completed"))
}
