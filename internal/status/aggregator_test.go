package status

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qaflow/internal/model"
	"qaflow/internal/store"
)

func newTestAggregator(t *testing.T) (*Aggregator, store.ArtifactStore) {
	t.Helper()
	s, err := store.NewFSStore(t.TempDir())
	require.NoError(t, err)
	return NewAggregator(s, slog.Default()), s
}

func writeSummary(t *testing.T, s store.ArtifactStore, summary model.RunSummary) {
	t.Helper()
	data, err := json.Marshal(summary)
	require.NoError(t, err)
	_, err = store.PutBytes(context.Background(), s, store.SummaryKey(summary.RunID), data, "application/json")
	require.NoError(t, err)
}

func uploadEvidence(t *testing.T, s store.ArtifactStore, runID, category, name string) string {
	t.Helper()
	url, err := store.PutBytes(context.Background(), s,
		store.EvidenceKey(runID, category, name), []byte("content"), "")
	require.NoError(t, err)
	return url
}

func TestGetStatus_CompleteRunRoundTrip(t *testing.T) {
	a, s := newTestAggregator(t)

	shotURL := uploadEvidence(t, s, "r1", store.CategoryScreenshots, "login.png")
	logURL := uploadEvidence(t, s, "r1", store.CategoryLogs, "stdout.log")
	reportURL := uploadEvidence(t, s, "r1", store.CategoryReports, "results.json")

	writeSummary(t, s, model.RunSummary{
		RunID:       "r1",
		WorkItemID:  "42",
		Status:      model.StatusPassed,
		Summary:     &model.Summary{Total: 3, Passed: 3},
		Screenshots: []model.EvidenceItem{{Name: "login.png", URL: shotURL}},
		Logs:        []model.EvidenceItem{{Name: "stdout.log", URL: logURL}},
		Reports:     []model.EvidenceItem{{Name: "results.json", URL: reportURL, Type: "json"}},
		ExecutedAt:  time.Now().UTC(),
	})

	view, err := a.GetStatus(context.Background(), "r1")
	require.NoError(t, err)

	assert.Equal(t, model.StatusPassed, view.Status)
	assert.Equal(t, "42", view.WorkItemID)
	require.NotNil(t, view.Summary)
	assert.Equal(t, 3, view.Summary.Passed)

	// Every uploaded item surfaces exactly once with a resolvable URL.
	require.Len(t, view.Screenshots, 1)
	require.Len(t, view.Logs, 1)
	require.Len(t, view.Reports, 1)
	assert.Equal(t, shotURL, view.Screenshots[0].URL)
	assert.False(t, view.RetrievedAt.IsZero())
}

func TestGetStatus_IsIdempotent(t *testing.T) {
	a, s := newTestAggregator(t)
	writeSummary(t, s, model.RunSummary{
		RunID:   "r2",
		Status:  model.StatusFailed,
		Summary: &model.Summary{Total: 2, Failed: 2},
	})

	first, err := a.GetStatus(context.Background(), "r2")
	require.NoError(t, err)
	second, err := a.GetStatus(context.Background(), "r2")
	require.NoError(t, err)

	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.Summary, second.Summary)
}

func TestGetStatus_PartialEvidenceWithoutSummary(t *testing.T) {
	a, s := newTestAggregator(t)

	// Evidence uploaded but the executor died before writing the summary.
	uploadEvidence(t, s, "r3", store.CategoryLogs, "stdout.log")
	uploadEvidence(t, s, "r3", store.CategoryScreenshots, "crash.png")

	view, err := a.GetStatus(context.Background(), "r3")
	require.NoError(t, err)

	assert.Equal(t, model.StatusNotFound, view.Status)
	assert.Len(t, view.Logs, 1, "partial evidence must not be discarded")
	assert.Len(t, view.Screenshots, 1)
	assert.Equal(t, "stdout.log", view.Logs[0].Name)
}

func TestGetStatus_UnknownRunID(t *testing.T) {
	a, _ := newTestAggregator(t)

	view, err := a.GetStatus(context.Background(), "unknown-id")
	require.NoError(t, err)

	assert.Equal(t, model.StatusNotFound, view.Status)
	assert.Empty(t, view.Screenshots)
	assert.Empty(t, view.Logs)
	assert.Empty(t, view.Reports)
}

func TestGetStatus_CorruptSummaryFallsBackToListing(t *testing.T) {
	a, s := newTestAggregator(t)

	uploadEvidence(t, s, "r4", store.CategoryLogs, "stdout.log")
	_, err := store.PutBytes(context.Background(), s, store.SummaryKey("r4"), []byte("{torn write"), "application/json")
	require.NoError(t, err)

	view, err := a.GetStatus(context.Background(), "r4")
	require.NoError(t, err)
	assert.Equal(t, model.StatusNotFound, view.Status)
	assert.Len(t, view.Logs, 1)
}

func TestGetStatus_SummaryReferencesTakePrecedence(t *testing.T) {
	a, s := newTestAggregator(t)

	uploadEvidence(t, s, "r5", store.CategoryLogs, "stray.log")
	writeSummary(t, s, model.RunSummary{
		RunID:  "r5",
		Status: model.StatusPassed,
		Logs:   []model.EvidenceItem{{Name: "curated.log", URL: "file:///curated.log"}},
	})

	view, err := a.GetStatus(context.Background(), "r5")
	require.NoError(t, err)
	require.Len(t, view.Logs, 1)
	assert.Equal(t, "curated.log", view.Logs[0].Name)
}

// failingListStore simulates a storage outage during listing.
type failingListStore struct{ store.ArtifactStore }

func (f *failingListStore) List(ctx context.Context, prefix string) ([]store.ObjectInfo, error) {
	return nil, fmt.Errorf("storage outage")
}

func TestHTTP_StatusEndpoint(t *testing.T) {
	a, s := newTestAggregator(t)
	writeSummary(t, s, model.RunSummary{
		RunID:   "r6",
		Status:  model.StatusPassed,
		Summary: &model.Summary{Total: 1, Passed: 1},
	})

	srv := httptest.NewServer(NewServer(a, slog.Default(), nil).Router())
	defer srv.Close()

	// Found.
	resp, err := http.Get(srv.URL + "/api/v1/runs/r6/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var view model.StatusView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	assert.Equal(t, model.StatusPassed, view.Status)

	// Unknown: 404 with a well-formed not_found body, empty arrays.
	resp404, err := http.Get(srv.URL + "/api/v1/runs/nope/status")
	require.NoError(t, err)
	defer resp404.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp404.StatusCode)

	body, err := io.ReadAll(resp404.Body)
	require.NoError(t, err)
	var notFound model.StatusView
	require.NoError(t, json.Unmarshal(body, &notFound))
	assert.Equal(t, model.StatusNotFound, notFound.Status)
	assert.NotNil(t, notFound.Screenshots)
	assert.Empty(t, notFound.Screenshots)
}

func TestHTTP_StorageErrorReturns500(t *testing.T) {
	s, err := store.NewFSStore(t.TempDir())
	require.NoError(t, err)
	a := NewAggregator(&failingListStore{s}, slog.Default())

	srv := httptest.NewServer(NewServer(a, slog.Default(), nil).Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/runs/any/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestHTTP_Healthz(t *testing.T) {
	a, _ := newTestAggregator(t)
	srv := httptest.NewServer(NewServer(a, slog.Default(), nil).Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
