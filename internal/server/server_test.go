package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cascade-backflow/leadroute/internal/config"
	"github.com/cascade-backflow/leadroute/internal/model"
	"github.com/cascade-backflow/leadroute/internal/scorer"
	"github.com/cascade-backflow/leadroute/internal/store"
)

var fixedNow = time.Date(2026, 3, 2, 15, 4, 5, 0, time.UTC)

// mockStore implements store.Store for testing.
type mockStore struct {
	mock.Mock
}

func (m *mockStore) SaveRun(ctx context.Context, run *model.Run) error {
	args := m.Called(ctx, run)
	if args.Error(0) == nil && run.ID == "" {
		run.ID = "run-generated"
	}
	return args.Error(0)
}

func (m *mockStore) GetRun(ctx context.Context, id string) (*model.Run, error) {
	args := m.Called(ctx, id)
	if r := args.Get(0); r != nil {
		return r.(*model.Run), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error) {
	args := m.Called(ctx, filter)
	if r := args.Get(0); r != nil {
		return r.([]model.Run), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) ListRunLeads(ctx context.Context, runID string, filter store.LeadFilter) ([]model.ScoredLead, error) {
	args := m.Called(ctx, runID, filter)
	if r := args.Get(0); r != nil {
		return r.([]model.ScoredLead), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockStore) Migrate(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockStore) Close() error {
	return m.Called().Error(0)
}

func testEngine() *scorer.Engine {
	return scorer.NewEngine(scorer.DefaultEngineConfig(), scorer.WithClock(func() time.Time { return fixedNow }))
}

func newTestServer(st store.Store, cfg config.ServerConfig) http.Handler {
	return New(testEngine(), st, cfg).Handler()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

const batchBody = `{
  "leads": [
    {"id": "c", "businessName": "Valley Retail", "address": "1 A St", "facilityType": "retail",
     "daysPastDue": -10, "email": "shop@example.com", "website": "https://shop.example.com",
     "latitude": 47.19, "longitude": -122.29},
    {"id": "h", "businessName": "Good Samaritan", "address": "2 B St", "facilityType": "hospital",
     "daysPastDue": 400, "contactPerson": "Dana", "phone": "253-555-0100", "email": "dana@example.com",
     "source": "compliance_monitor", "latitude": 47.1853, "longitude": -122.2928},
    {"id": "w", "businessName": "Diner", "address": "3 C St", "facilityType": "restaurant",
     "daysPastDue": 200, "phone": "253-555-0101", "latitude": 47.19, "longitude": -122.29},
    {"id": "x", "businessName": "Nowhere", "address": "4 D St", "facilityType": "office"}
  ]%s
}`

func batch(extra string) string {
	return strings.Replace(batchBody, "%s", extra, 1)
}

func TestHealth(t *testing.T) {
	h := newTestServer(nil, config.ServerConfig{})

	rec := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[map[string]string](t, rec)["status"])
}

func TestHealth_StoreDown(t *testing.T) {
	st := &mockStore{}
	st.On("Ping", mock.Anything).Return(eris.New("connection refused"))
	h := newTestServer(st, config.ServerConfig{})

	rec := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	st.AssertExpectations(t)
}

func TestScoreBatch(t *testing.T) {
	h := newTestServer(nil, config.ServerConfig{})

	rec := do(t, h, http.MethodPost, "/api/v1/leads/score-batch", batch(""))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[batchResponse](t, rec)
	assert.Equal(t, 4, resp.Stats.TotalInput)
	assert.Equal(t, 3, resp.Stats.TotalProcessed)
	assert.Equal(t, 1, resp.Stats.HotLeads)
	assert.Equal(t, 1, resp.Stats.WarmLeads)
	assert.Equal(t, 1, resp.Stats.ColdLeads)
	assert.Equal(t, 1, resp.Stats.SkippedMissingCoords)
	require.Len(t, resp.Leads, 3)
	assert.Equal(t, "h", resp.Leads[0].ID)
	assert.Equal(t, 94, resp.Leads[0].Score)
	assert.Equal(t, "w", resp.Leads[1].ID)
	assert.Equal(t, "c", resp.Leads[2].ID)
	assert.Empty(t, resp.RunID)
}

func TestScoreBatch_Options(t *testing.T) {
	h := newTestServer(nil, config.ServerConfig{})

	rec := do(t, h, http.MethodPost, "/api/v1/leads/score-batch",
		batch(`, "options": {"temperatureFilter": "warm", "minScore": 50}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[batchResponse](t, rec)
	require.Len(t, resp.Leads, 1)
	assert.Equal(t, "w", resp.Leads[0].ID)
	assert.Equal(t, 2, resp.Stats.FilteredOut)
}

func TestScoreBatch_SkipsMistypedLeads(t *testing.T) {
	h := newTestServer(nil, config.ServerConfig{})

	body := `{"leads": [
		{"id": "good", "businessName": "Good Samaritan", "address": "2 B St", "facilityType": "hospital",
		 "daysPastDue": 400, "latitude": 47.1853, "longitude": -122.2928},
		{"id": "bad", "businessName": "Typo", "address": "5 E St", "latitude": "47.1853", "longitude": -122.2928},
		{"id": "frac", "businessName": "Half", "address": "6 F St", "deviceCount": 2.5, "latitude": 47.1853, "longitude": -122.2928},
		7
	]}`
	rec := do(t, h, http.MethodPost, "/api/v1/leads/score-batch", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[batchResponse](t, rec)
	assert.Equal(t, 4, resp.Stats.TotalInput)
	assert.Equal(t, 3, resp.Stats.Failed)
	assert.Equal(t, 0, resp.Stats.SkippedMissingCoords)
	require.Len(t, resp.Leads, 1)
	assert.Equal(t, "good", resp.Leads[0].ID)
}

func TestScoreBatch_AllLeadsMistyped(t *testing.T) {
	h := newTestServer(nil, config.ServerConfig{})

	rec := do(t, h, http.MethodPost, "/api/v1/leads/score-batch", `{"leads": [{"latitude": "x", "longitude": "y"}]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[batchResponse](t, rec)
	assert.Equal(t, 1, resp.Stats.TotalInput)
	assert.Equal(t, 1, resp.Stats.Failed)
	assert.Empty(t, resp.Leads)
}

func TestScoreBatch_BadInput(t *testing.T) {
	h := newTestServer(nil, config.ServerConfig{})

	tests := []struct {
		name string
		body string
		want string
	}{
		{"malformed body", `{"leads": [`, "invalid request body"},
		{"missing leads", `{}`, "leads must be a non-empty list"},
		{"leads is object", `{"leads": {"id": "a"}}`, "leads must be a non-empty list"},
		{"leads is string", `{"leads": "a"}`, "leads must be a non-empty list"},
		{"empty leads", `{"leads": []}`, "non-empty list"},
		{"bad sort", `{"leads": [{}], "options": {"sortBy": "name"}}`, "invalid options"},
		{"negative max", `{"leads": [{}], "options": {"maxResults": -1}}`, "invalid options"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/v1/leads/score-batch", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.want)
		})
	}
}

func TestScoreBatch_Save(t *testing.T) {
	st := &mockStore{}
	st.On("SaveRun", mock.Anything, mock.MatchedBy(func(r *model.Run) bool {
		return len(r.Leads) == 3 && r.Stats.TotalProcessed == 3 && *r.Options.MinScore == 30 && r.Options.SortBy == model.SortByScore
	})).Return(nil)
	h := newTestServer(st, config.ServerConfig{})

	rec := do(t, h, http.MethodPost, "/api/v1/leads/score-batch", batch(`, "save": true`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "run-generated", decode[batchResponse](t, rec).RunID)
	st.AssertExpectations(t)
}

func TestScoreBatch_SaveWithoutStore(t *testing.T) {
	h := newTestServer(nil, config.ServerConfig{})

	rec := do(t, h, http.MethodPost, "/api/v1/leads/score-batch", batch(`, "save": true`))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestScoreBatch_SaveFails(t *testing.T) {
	st := &mockStore{}
	st.On("SaveRun", mock.Anything, mock.Anything).Return(eris.New("disk full"))
	h := newTestServer(st, config.ServerConfig{})

	rec := do(t, h, http.MethodPost, "/api/v1/leads/score-batch", batch(`, "save": true`))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "disk full")
}

func TestScore(t *testing.T) {
	h := newTestServer(nil, config.ServerConfig{})

	rec := do(t, h, http.MethodPost, "/api/v1/leads/score",
		`{"businessName": "Joe's Diner", "address": "1510 Main St, Sumner, WA 98390", "lat": 47.1853, "lng": -122.2928}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[scoreResponse](t, rec)
	assert.Equal(t, 49, resp.Lead.Score)
	assert.Equal(t, "commercial", resp.Lead.FacilityType)
	assert.Equal(t, model.TemperatureCold, resp.Analysis.Temperature)
	assert.Equal(t, "email within 2weeks", resp.Analysis.RecommendedAction)
	assert.Equal(t, "$500", resp.Analysis.EstimatedValue)
	assert.Equal(t, "0.00 miles", resp.Analysis.Distance)
}

func TestScore_LongCoordinateNames(t *testing.T) {
	h := newTestServer(nil, config.ServerConfig{})

	rec := do(t, h, http.MethodPost, "/api/v1/leads/score",
		`{"businessName": "Joe's Diner", "address": "1510 Main St", "latitude": 47.1853, "longitude": -122.2928}`)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestScore_Validation(t *testing.T) {
	h := newTestServer(nil, config.ServerConfig{})

	tests := []struct {
		name string
		body string
		want []string
	}{
		{"missing everything", `{}`, []string{"businessName is required", "address is required", "lat is required", "lng is required"}},
		{"blank name", `{"businessName": "  ", "address": "a", "lat": 47, "lng": -122}`, []string{"businessName is required"}},
		{"latitude out of range", `{"businessName": "a", "address": "a", "lat": 147, "lng": -122}`, []string{"lat must be a valid latitude"}},
		{"bad size", `{"businessName": "a", "address": "a", "lat": 47, "lng": -122, "businessSize": "huge"}`, []string{"businessSize must be one of"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/v1/leads/score", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			for _, w := range tt.want {
				assert.Contains(t, rec.Body.String(), w)
			}
		})
	}
}

func TestRuns_NotMountedWithoutStore(t *testing.T) {
	h := newTestServer(nil, config.ServerConfig{})

	rec := do(t, h, http.MethodGet, "/api/v1/runs", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListRuns(t *testing.T) {
	st := &mockStore{}
	st.On("ListRuns", mock.Anything, store.RunFilter{Limit: 5, Offset: 10}).
		Return([]model.Run{{ID: "r1"}, {ID: "r2"}}, nil)
	h := newTestServer(st, config.ServerConfig{})

	rec := do(t, h, http.MethodGet, "/api/v1/runs?limit=5&offset=10", "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[struct {
		Runs []model.Run `json:"runs"`
	}](t, rec)
	require.Len(t, resp.Runs, 2)
	assert.Equal(t, "r1", resp.Runs[0].ID)
	st.AssertExpectations(t)
}

func TestListRuns_BadQuery(t *testing.T) {
	h := newTestServer(&mockStore{}, config.ServerConfig{})

	rec := do(t, h, http.MethodGet, "/api/v1/runs?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, h, http.MethodGet, "/api/v1/runs?offset=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetRun(t *testing.T) {
	st := &mockStore{}
	st.On("GetRun", mock.Anything, "r1").Return(&model.Run{ID: "r1", Stats: model.BatchStats{TotalInput: 7}}, nil)
	st.On("GetRun", mock.Anything, "missing").Return(nil, eris.Wrap(store.ErrNotFound, "sqlite: run missing"))
	st.On("GetRun", mock.Anything, "broken").Return(nil, eris.New("database is locked"))
	h := newTestServer(st, config.ServerConfig{})

	rec := do(t, h, http.MethodGet, "/api/v1/runs/r1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 7, decode[model.Run](t, rec).Stats.TotalInput)

	rec = do(t, h, http.MethodGet, "/api/v1/runs/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "run not found")

	rec = do(t, h, http.MethodGet, "/api/v1/runs/broken", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	st.AssertExpectations(t)
}

func TestListRunLeads(t *testing.T) {
	st := &mockStore{}
	st.On("ListRunLeads", mock.Anything, "r1", store.LeadFilter{
		Temperature: model.TemperatureHot,
		Cluster:     "North",
		MinScore:    60,
		Limit:       10,
	}).Return([]model.ScoredLead{{ID: "a", Score: 90}}, nil)
	st.On("ListRunLeads", mock.Anything, "missing", store.LeadFilter{}).
		Return(nil, eris.Wrap(store.ErrNotFound, "postgres: run missing"))
	h := newTestServer(st, config.ServerConfig{})

	rec := do(t, h, http.MethodGet, "/api/v1/runs/r1/leads?temperature=HOT&cluster=North&minScore=60&limit=10", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[struct {
		RunID string             `json:"runId"`
		Leads []model.ScoredLead `json:"leads"`
	}](t, rec)
	assert.Equal(t, "r1", resp.RunID)
	require.Len(t, resp.Leads, 1)
	assert.Equal(t, "a", resp.Leads[0].ID)

	rec = do(t, h, http.MethodGet, "/api/v1/runs/missing/leads", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	st.AssertExpectations(t)
}

func TestListRunLeads_BadQuery(t *testing.T) {
	h := newTestServer(&mockStore{}, config.ServerConfig{})

	for _, q := range []string{"temperature=LUKEWARM", "cluster=Moon", "minScore=abc", "limit=-5"} {
		rec := do(t, h, http.MethodGet, "/api/v1/runs/r1/leads?"+q, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestRateLimit(t *testing.T) {
	h := newTestServer(nil, config.ServerConfig{RateLimit: 0.001, Burst: 2})

	body := `{"businessName": "a", "address": "a", "lat": 47.1853, "lng": -122.2928}`
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/api/v1/leads/score", body).Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/api/v1/leads/score", body).Code)

	rec := do(t, h, http.MethodPost, "/api/v1/leads/score", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "rate limit exceeded")

	// health is outside the limited group
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/health", "").Code)
}

func TestCORS(t *testing.T) {
	h := newTestServer(nil, config.ServerConfig{AllowedOrigins: []string{"https://ops.example.com"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/leads/score", nil)
	req.Header.Set("Origin", "https://ops.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "https://ops.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestListenAndServe_Shutdown(t *testing.T) {
	s := New(testEngine(), nil, config.ServerConfig{Port: 0})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, s.ListenAndServe(ctx))
}
