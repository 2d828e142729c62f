package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/mailchimp-clickmap/internal/clickmap"
	"github.com/ignite/mailchimp-clickmap/internal/config"
	"github.com/ignite/mailchimp-clickmap/internal/mailchimp"
	"github.com/ignite/mailchimp-clickmap/internal/pkg/runlock"
	"github.com/ignite/mailchimp-clickmap/internal/storage"
)

// stubSource is an in-memory campaign source for handler tests.
type stubSource struct {
	campaigns []mailchimp.Campaign
	content   map[string]string
	details   map[string][]mailchimp.ClickDetail
	listErr   error
}

func (s *stubSource) ListCampaigns(_ context.Context, _ time.Time, filter mailchimp.CampaignFilter) ([]mailchimp.Campaign, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []mailchimp.Campaign
	for _, c := range s.campaigns {
		if filter == nil || filter(c) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *stubSource) GetCampaignContent(_ context.Context, id string) (string, error) {
	return s.content[id], nil
}

func (s *stubSource) GetClickDetails(_ context.Context, id string) ([]mailchimp.ClickDetail, error) {
	return s.details[id], nil
}

func newTestRouter(source *stubSource) http.Handler {
	builder := clickmap.NewBuilder(clickmap.NewFilter(config.DefaultExcludedDomains()))
	pipeline := clickmap.NewPipeline(source, builder, nil)
	h := NewHandlers(pipeline, source, nil, config.PipelineConfig{LookbackDays: 30})
	return SetupRoutes(h, NewHealthChecker(nil, nil, nil))
}

func defaultStubSource() *stubSource {
	return &stubSource{
		campaigns: []mailchimp.Campaign{
			{ID: "c1", Settings: mailchimp.CampaignSettings{Title: "Daybreak Monday"}},
			{ID: "c2", Settings: mailchimp.CampaignSettings{Title: "Weekly Roundup"}},
		},
		content: map[string]string{
			"c1": `<a href="https://example.com/story">story</a>`,
			"c2": `<a href="https://example.com/other">other</a>`,
		},
		details: map[string][]mailchimp.ClickDetail{
			"c1": {{URL: "https://example.com/story", TotalClicks: 7, UniqueClicks: 5}},
		},
	}
}

func TestHandleTriggerRun(t *testing.T) {
	router := newTestRouter(defaultStubSource())

	req := httptest.NewRequest(http.MethodPost, "/api/runs",
		strings.NewReader(`{"name_filter":"Daybreak","lookback_days":7}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp runResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.NotEmpty(t, resp.RunID)
	assert.Equal(t, "Daybreak", resp.NameFilter)
	assert.Equal(t, 1, resp.CampaignsListed)
	assert.Equal(t, 1, resp.CampaignsProcessed)
	assert.Equal(t, 1, resp.RecordCount)
}

func TestHandleTriggerRunEmptyBody(t *testing.T) {
	router := newTestRouter(defaultStubSource())

	req := httptest.NewRequest(http.MethodPost, "/api/runs", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp runResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 2, resp.CampaignsListed)
	assert.Equal(t, 2, resp.CampaignsProcessed)
}

func TestHandleTriggerRunBadBody(t *testing.T) {
	router := newTestRouter(defaultStubSource())

	req := httptest.NewRequest(http.MethodPost, "/api/runs", strings.NewReader(`{not json`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleTriggerRunConflict(t *testing.T) {
	source := defaultStubSource()
	builder := clickmap.NewBuilder(clickmap.NewFilter(config.DefaultExcludedDomains()))
	pipeline := clickmap.NewPipeline(source, builder, nil)
	h := NewHandlers(pipeline, source, nil, config.PipelineConfig{LookbackDays: 30})

	lock := runlock.NewLocalLock()
	_, err := lock.Acquire(context.Background())
	require.NoError(t, err)
	h.SetRunLock(lock)

	router := SetupRoutes(h, NewHealthChecker(nil, nil, nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/runs", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandleListRunsStoreless(t *testing.T) {
	router := newTestRouter(defaultStubSource())

	// No run yet: empty list.
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var runs []runResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&runs))
	assert.Empty(t, runs)

	// After a run, the last result is listed.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/runs", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&runs))
	require.Len(t, runs, 1)
	assert.NotEmpty(t, runs[0].RunID)
}

func TestHandleGetRunRecords(t *testing.T) {
	router := newTestRouter(defaultStubSource())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/runs", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp runResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/"+resp.RunID+"/records", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var records []clickmap.Record
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&records))
	require.Len(t, records, 2)
	assert.Equal(t, "https://example.com/story", records[0].URL)
	assert.Equal(t, int64(7), records[0].TotalClicks)
}

func TestHandleGetRunRecordsStoredEmptyRun(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	recordCols := []string{"campaign_id", "campaign_name", "link_order", "url",
		"total_clicks", "unique_clicks", "click_percentage", "unique_click_percentage"}

	// A stored run whose campaigns were all skipped: no record rows,
	// but the run row exists, so the response is 200 with [].
	mock.ExpectQuery("SELECT campaign_id").
		WithArgs("run-empty").
		WillReturnRows(sqlmock.NewRows(recordCols))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("run-empty").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	// An unknown run is still a 404.
	mock.ExpectQuery("SELECT campaign_id").
		WithArgs("run-missing").
		WillReturnRows(sqlmock.NewRows(recordCols))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("run-missing").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	source := defaultStubSource()
	builder := clickmap.NewBuilder(clickmap.NewFilter(config.DefaultExcludedDomains()))
	pipeline := clickmap.NewPipeline(source, builder, nil)
	h := NewHandlers(pipeline, source, storage.NewRunStore(db), config.PipelineConfig{LookbackDays: 30})
	router := SetupRoutes(h, NewHealthChecker(nil, nil, nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/run-empty/records", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var records []clickmap.Record
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&records))
	assert.Empty(t, records)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/run-missing/records", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleGetRunRecordsNotFound(t *testing.T) {
	router := newTestRouter(defaultStubSource())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/nope/records", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleListCampaigns(t *testing.T) {
	router := newTestRouter(defaultStubSource())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/campaigns?filter=Daybreak", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var campaigns []mailchimp.Campaign
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&campaigns))
	require.Len(t, campaigns, 1)
	assert.Equal(t, "c1", campaigns[0].ID)
}

func TestHandleListCampaignsUpstreamError(t *testing.T) {
	source := defaultStubSource()
	source.listErr = assert.AnError
	router := newTestRouter(source)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/campaigns", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestHandleHealth(t *testing.T) {
	router := newTestRouter(defaultStubSource())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var status HealthStatus
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, "not configured", status.Checks["database"].Message)
	assert.Equal(t, "not configured", status.Checks["mailchimp"].Message)
}

func TestHandleLiveness(t *testing.T) {
	router := newTestRouter(defaultStubSource())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"alive"`)
}
