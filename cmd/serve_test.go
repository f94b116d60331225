package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/zipleads/internal/pipeline"
	"github.com/sells-group/zipleads/internal/stream"
	"github.com/sells-group/zipleads/pkg/leadapi"
)

// fakeUpstream is a stateful stand-in for the lead API: builds land
// immediately and deletes clear the count on the next read.
type fakeUpstream struct {
	mu    sync.Mutex
	count int
	page  []map[string]any
}

func (f *fakeUpstream) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/leads/count", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]any{"success": true, "count": f.count})
	})

	mux.HandleFunc("/leads/build", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.count = len(f.page)
		json.NewEncoder(w).Encode(map[string]any{"success": true, "expected": len(f.page)})
	})

	mux.HandleFunc("/leads/search", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]any{"success": true, "leads": f.page})
	})

	mux.HandleFunc("/leads/delete", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.count = 0
		json.NewEncoder(w).Encode(map[string]any{"success": true})
	})

	return mux
}

func newTestExportHandler(t *testing.T, upstream *fakeUpstream) http.HandlerFunc {
	t.Helper()

	srv := httptest.NewServer(upstream.handler())
	t.Cleanup(srv.Close)

	client := leadapi.NewClient(leadapi.WithBaseURL(srv.URL))
	cfg := pipeline.Config{
		Concurrency:  4,
		BuildBudget:  2 * time.Second,
		DeleteBudget: 2 * time.Second,
		PollInterval: 5 * time.Millisecond,
	}
	return handleExport(pipeline.New(client, nil, cfg))
}

func TestHandleExport_StreamsCSVThenDone(t *testing.T) {
	upstream := &fakeUpstream{
		page: []map[string]any{
			{
				"address": "12 Oak St, Beverly Hills, CA",
				"contacts": []map[string]any{{
					"firstName": "ann", "lastName": "Lee",
					"phone1": "555-012-1111", "phone1Type": "W",
					"email1": "ann@example.com",
				}},
			},
			{
				"address": "14 Oak St, Beverly Hills, CA",
				"contacts": []map[string]any{{
					"firstName": "Bob",
					"phone1":    "555-012-2222", "phone1Type": "H",
				}},
			},
		},
	}
	handler := newTestExportHandler(t, upstream)

	body := `{"token":"t","zips":["90210"]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/export", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))

	raw := strings.TrimRight(rec.Body.String(), "\n")
	lines := strings.Split(raw, "\n")
	require.NotEmpty(t, lines)
	assert.Equal(t, "Done.", lines[len(lines)-1])

	var csvEvent *stream.CSVEvent
	csvIndex := -1
	for i, line := range lines {
		ev := stream.ParseLine(line)
		if ev.CSV != nil {
			csvEvent = ev.CSV
			csvIndex = i
		}
	}
	require.NotNil(t, csvEvent, "stream must carry exactly one csv event")
	assert.Less(t, csvIndex, len(lines)-1, "csv event precedes the Done terminator")
	assert.Equal(t, "90210", csvEvent.Zip)
	assert.Equal(t, "homeowners_90210.csv", csvEvent.Filename)

	data, err := csvEvent.DecodeCSV()
	require.NoError(t, err)
	csvLines := strings.Split(strings.TrimRight(string(data), "\r\n"), "\n")
	require.Len(t, csvLines, 2, "header plus the single mobile-carrying homeowner")
	assert.Contains(t, csvLines[1], "Ann")
	assert.Contains(t, csvLines[1], "5550121111")
	assert.NotContains(t, string(data), "Bob")
}

func TestHandleExport_RejectsInvalidRequestBeforeStreaming(t *testing.T) {
	handler := newTestExportHandler(t, &fakeUpstream{})

	for name, body := range map[string]string{
		"malformed json": `{`,
		"missing token":  `{"zips":["90210"]}`,
		"no valid zips":  `{"token":"t","zips":["abc"]}`,
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/export", strings.NewReader(body))
			rec := httptest.NewRecorder()
			handler(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.NotContains(t, rec.Body.String(), "Done.")
		})
	}
}

func TestHandleExport_ReportsPipelineErrorInBand(t *testing.T) {
	// Upstream that fails every call after validation has passed.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	client := leadapi.NewClient(leadapi.WithBaseURL(srv.URL))
	handler := handleExport(pipeline.New(client, nil, pipeline.Config{
		Concurrency:  4,
		BuildBudget:  time.Second,
		DeleteBudget: time.Second,
		PollInterval: 5 * time.Millisecond,
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/export", strings.NewReader(`{"token":"t","zips":["90210"]}`))
	rec := httptest.NewRecorder()
	handler(rec, req)

	// Status is already committed; the failure arrives as the final line.
	require.Equal(t, http.StatusOK, rec.Code)
	raw := strings.TrimRight(rec.Body.String(), "\n")
	lines := strings.Split(raw, "\n")
	assert.True(t, strings.HasPrefix(lines[len(lines)-1], "ERROR: "), "got %q", lines[len(lines)-1])
	assert.NotContains(t, raw, "Done.")
}
