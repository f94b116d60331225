package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/zipleads/internal/model"
	"github.com/sells-group/zipleads/internal/stream"
	"github.com/sells-group/zipleads/pkg/leadapi"
)

// fakeClient implements leadapi.Client with per-operation hooks.
type fakeClient struct {
	countFunc  func(ctx context.Context, token string) (int, error)
	buildFunc  func(ctx context.Context, token, zip string) (*leadapi.BuildResponse, error)
	fetchFunc  func(ctx context.Context, token string, offset int) (*leadapi.SearchResponse, error)
	deleteFunc func(ctx context.Context, token string, count int) error
}

func (f *fakeClient) CountLeads(ctx context.Context, token string) (int, error) {
	return f.countFunc(ctx, token)
}

func (f *fakeClient) BuildRegion(ctx context.Context, token, zip string) (*leadapi.BuildResponse, error) {
	return f.buildFunc(ctx, token, zip)
}

func (f *fakeClient) FetchPage(ctx context.Context, token string, offset int) (*leadapi.SearchResponse, error) {
	return f.fetchFunc(ctx, token, offset)
}

func (f *fakeClient) DeleteAll(ctx context.Context, token string, count int) error {
	return f.deleteFunc(ctx, token, count)
}

// captureSink records stream output in emission order.
type captureSink struct {
	mu      sync.Mutex
	entries []sinkEntry
}

type sinkEntry struct {
	kind string // "line", "phase", "csv"
	text string
	zip  string
	data []byte
}

func (s *captureSink) Linef(format string, args ...any) {
	s.add(sinkEntry{kind: "line", text: fmt.Sprintf(format, args...)})
}

func (s *captureSink) Phase(message string) {
	s.add(sinkEntry{kind: "phase", text: message})
}

func (s *captureSink) CSV(zip, filename string, data []byte) {
	s.add(sinkEntry{kind: "csv", zip: zip, text: filename, data: data})
}

func (s *captureSink) add(e sinkEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
}

func (s *captureSink) csvEvents() []sinkEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []sinkEntry
	for _, e := range s.entries {
		if e.kind == "csv" {
			out = append(out, e)
		}
	}
	return out
}

func splitCSVLines(data string) []string {
	return strings.Split(strings.TrimRight(data, "\r\n"), "\n")
}

func testConfig() Config {
	return Config{
		Concurrency:  2,
		BuildBudget:  500 * time.Millisecond,
		DeleteBudget: 500 * time.Millisecond,
		PollInterval: 5 * time.Millisecond,
	}
}

func TestPipeline_EndToEnd(t *testing.T) {
	// Upstream state: empty account, one region whose build yields two
	// properties, only one of which carries a mobile-tagged phone.
	var built atomic.Bool
	var deletes atomic.Int32

	client := &fakeClient{
		countFunc: func(ctx context.Context, token string) (int, error) {
			if built.Load() && deletes.Load() == 0 {
				return 2, nil
			}
			return 0, nil
		},
		buildFunc: func(ctx context.Context, token, zip string) (*leadapi.BuildResponse, error) {
			assert.Equal(t, "90210", zip)
			built.Store(true)
			return &leadapi.BuildResponse{Success: true, Expected: 2}, nil
		},
		fetchFunc: func(ctx context.Context, token string, offset int) (*leadapi.SearchResponse, error) {
			assert.Equal(t, 0, offset)
			return &leadapi.SearchResponse{
				Success: true,
				Leads: []leadapi.Property{
					{
						Address: "12 Oak St, Beverly Hills, CA",
						Contacts: []leadapi.Contact{{
							FirstName: "ann", LastName: "Lee",
							Phone1: "555-012-1111", Phone1Type: "W",
						}},
					},
					{
						Address: "14 Oak St, Beverly Hills, CA",
						Contacts: []leadapi.Contact{{
							FirstName: "Bob",
							Phone1:    "555-012-2222", Phone1Type: "H",
						}},
					},
				},
			}, nil
		},
		deleteFunc: func(ctx context.Context, token string, count int) error {
			assert.Equal(t, 2, count)
			deletes.Add(1)
			return nil
		},
	}

	sink := &captureSink{}
	pipe := New(client, nil, testConfig())

	req := model.ExportRequest{Token: "t", Zips: []string{"90210"}}
	err := pipe.Run(context.Background(), req, sink)
	require.NoError(t, err)

	events := sink.csvEvents()
	require.Len(t, events, 1)
	assert.Equal(t, "90210", events[0].zip)
	assert.Equal(t, "homeowners_90210.csv", events[0].text)

	// Header plus exactly the one mobile-carrying homeowner.
	lines := splitCSVLines(string(events[0].data))
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "Ann")
	assert.NotContains(t, string(events[0].data), "Bob")

	// Cleanup delete ran once (pre-delete skipped on the empty account).
	assert.Equal(t, int32(1), deletes.Load())
}

func TestPipeline_PreDeleteClearsExistingLeads(t *testing.T) {
	// 120 stale leads exist; after the sized delete the count converges to 0.
	var deleted atomic.Bool
	var deletedCount atomic.Int32

	client := &fakeClient{
		countFunc: func(ctx context.Context, token string) (int, error) {
			if deleted.Load() {
				return 0, nil
			}
			return 120, nil
		},
		buildFunc: func(ctx context.Context, token, zip string) (*leadapi.BuildResponse, error) {
			return &leadapi.BuildResponse{Success: true, Expected: 0}, nil
		},
		fetchFunc: func(ctx context.Context, token string, offset int) (*leadapi.SearchResponse, error) {
			return &leadapi.SearchResponse{Success: true}, nil
		},
		deleteFunc: func(ctx context.Context, token string, count int) error {
			deletedCount.Store(int32(count))
			deleted.Store(true)
			return nil
		},
	}

	sink := &captureSink{}
	err := New(client, nil, testConfig()).Run(context.Background(),
		model.ExportRequest{Token: "t", Zips: []string{"90210"}}, sink)

	require.NoError(t, err)
	assert.Equal(t, int32(120), deletedCount.Load(), "delete is sized to the live count")
}

func TestPipeline_BuildTimeoutAborts(t *testing.T) {
	var fetches atomic.Int32

	client := &fakeClient{
		countFunc: func(ctx context.Context, token string) (int, error) {
			return 0, nil // never reaches the build target
		},
		buildFunc: func(ctx context.Context, token, zip string) (*leadapi.BuildResponse, error) {
			return &leadapi.BuildResponse{Success: true, Expected: 500}, nil
		},
		fetchFunc: func(ctx context.Context, token string, offset int) (*leadapi.SearchResponse, error) {
			fetches.Add(1)
			return &leadapi.SearchResponse{Success: true}, nil
		},
		deleteFunc: func(ctx context.Context, token string, count int) error {
			return nil
		},
	}

	cfg := testConfig()
	cfg.BuildBudget = 30 * time.Millisecond

	sink := &captureSink{}
	err := New(client, nil, cfg).Run(context.Background(),
		model.ExportRequest{Token: "t", Zips: []string{"30301"}}, sink)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "build 30301")
	assert.Zero(t, fetches.Load(), "export never starts after a poll timeout")
	assert.Empty(t, sink.csvEvents())
}

func TestPipeline_FailureStopsRemainingRegions(t *testing.T) {
	var builds atomic.Int32

	client := &fakeClient{
		countFunc: func(ctx context.Context, token string) (int, error) {
			return 0, nil
		},
		buildFunc: func(ctx context.Context, token, zip string) (*leadapi.BuildResponse, error) {
			builds.Add(1)
			return nil, &leadapi.APIError{Endpoint: "/leads/build", StatusCode: 502, Body: "bad gateway"}
		},
		fetchFunc: func(ctx context.Context, token string, offset int) (*leadapi.SearchResponse, error) {
			return &leadapi.SearchResponse{Success: true}, nil
		},
		deleteFunc: func(ctx context.Context, token string, count int) error {
			return nil
		},
	}

	err := New(client, nil, testConfig()).Run(context.Background(),
		model.ExportRequest{Token: "t", Zips: []string{"90210", "30301", "60601"}}, &captureSink{})

	require.Error(t, err)
	var apiErr *leadapi.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, int32(1), builds.Load(), "remaining regions are never attempted")
}

func TestPipeline_RegionsRunInRequestOrder(t *testing.T) {
	var mu sync.Mutex
	var order []string

	client := &fakeClient{
		countFunc: func(ctx context.Context, token string) (int, error) {
			return 0, nil
		},
		buildFunc: func(ctx context.Context, token, zip string) (*leadapi.BuildResponse, error) {
			mu.Lock()
			order = append(order, zip)
			mu.Unlock()
			return &leadapi.BuildResponse{Success: true, Expected: 0}, nil
		},
		fetchFunc: func(ctx context.Context, token string, offset int) (*leadapi.SearchResponse, error) {
			return &leadapi.SearchResponse{Success: true}, nil
		},
		deleteFunc: func(ctx context.Context, token string, count int) error {
			return nil
		},
	}

	sink := &captureSink{}
	err := New(client, nil, testConfig()).Run(context.Background(),
		model.ExportRequest{Token: "t", Zips: []string{"60601", "30301", "90210"}}, sink)

	require.NoError(t, err)
	assert.Equal(t, []string{"60601", "30301", "90210"}, order)

	events := sink.csvEvents()
	require.Len(t, events, 3)
	assert.Equal(t, "60601", events[0].zip)
	assert.Equal(t, "30301", events[1].zip)
	assert.Equal(t, "90210", events[2].zip)
}

// recordingStore captures Store calls for history assertions.
type recordingStore struct {
	mu        sync.Mutex
	created   []model.Run
	completed map[string][]model.RegionResult
	failed    map[string]string
}

func newRecordingStore() *recordingStore {
	return &recordingStore{
		completed: make(map[string][]model.RegionResult),
		failed:    make(map[string]string),
	}
}

func (r *recordingStore) CreateRun(_ context.Context, run model.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, run)
	return nil
}

func (r *recordingStore) CompleteRun(_ context.Context, runID string, regions []model.RegionResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed[runID] = regions
	return nil
}

func (r *recordingStore) FailRun(_ context.Context, runID, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed[runID] = message
	return nil
}

func (r *recordingStore) GetRun(context.Context, string) (*model.Run, error) {
	return nil, nil
}

func (r *recordingStore) ListRuns(context.Context, int) ([]model.Run, error) {
	return nil, nil
}

func (r *recordingStore) Migrate(context.Context) error { return nil }
func (r *recordingStore) Close() error                  { return nil }

func TestPipeline_RecordsRunHistory(t *testing.T) {
	client := &fakeClient{
		countFunc: func(ctx context.Context, token string) (int, error) {
			return 0, nil
		},
		buildFunc: func(ctx context.Context, token, zip string) (*leadapi.BuildResponse, error) {
			return &leadapi.BuildResponse{Success: true, Expected: 0}, nil
		},
		fetchFunc: func(ctx context.Context, token string, offset int) (*leadapi.SearchResponse, error) {
			return &leadapi.SearchResponse{Success: true}, nil
		},
		deleteFunc: func(ctx context.Context, token string, count int) error {
			return nil
		},
	}

	st := newRecordingStore()
	err := New(client, st, testConfig()).Run(context.Background(),
		model.ExportRequest{Token: "secret-token-1234", Zips: []string{"90210"}}, &captureSink{})
	require.NoError(t, err)

	require.Len(t, st.created, 1)
	assert.Equal(t, "****1234", st.created[0].TokenHint, "raw token never reaches the store")
	regions, ok := st.completed[st.created[0].ID]
	require.True(t, ok)
	require.Len(t, regions, 1)
	assert.Equal(t, "90210", regions[0].Zip)
	assert.Empty(t, st.failed)
}

var _ stream.Sink = (*captureSink)(nil)
