package history

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plantdoc/internal/analyses"
)

func setupHistoryRouter(t *testing.T) (*gin.Engine, *Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc := newTestService()
	r := gin.New()
	NewHandler(svc).RegisterRoutes(r.Group("/api/v1"))
	return r, svc
}

func doRequest(r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestHistoryListFilters(t *testing.T) {
	r, svc := setupHistoryRouter(t)
	ctx := context.Background()
	_, err := svc.SaveAnalysis(ctx, analysisFor("Milho", true, "2025-06-10T00:00:00Z"), "", nil)
	require.NoError(t, err)
	tomato, err := svc.SaveAnalysis(ctx, analysisFor("Tomate", false, "2025-06-11T00:00:00Z"), "", nil)
	require.NoError(t, err)

	var out listResponse
	w := doRequest(r, http.MethodGet, "/api/v1/history")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, 2, out.Count)

	w = doRequest(r, http.MethodGet, "/api/v1/history?healthy=false")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Equal(t, 1, out.Count)
	assert.Equal(t, tomato, out.Items[0].ID)

	w = doRequest(r, http.MethodGet, "/api/v1/history?q=mil")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Equal(t, 1, out.Count)
	assert.Equal(t, "Milho", out.Items[0].Analysis.Identification.Name)

	w = doRequest(r, http.MethodGet, "/api/v1/history?favorites=true")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Zero(t, out.Count)
	assert.NotNil(t, out.Items)

	w = doRequest(r, http.MethodGet, "/api/v1/history?healthy=maybe")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHistoryItemLifecycle(t *testing.T) {
	r, svc := setupHistoryRouter(t)
	demo := analysisFor(analyses.FallbackPlantName, false, "2025-06-10T00:00:00Z")
	demo.Mode = analyses.ModeFallback
	id, err := svc.SaveAnalysis(context.Background(), demo, "ns/a.jpg", nil)
	require.NoError(t, err)

	w := doRequest(r, http.MethodPost, "/api/v1/history/"+id+"/favorite")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":"`+id+`","favorite":true}`, w.Body.String())

	w = doRequest(r, http.MethodGet, "/api/v1/history/"+id)
	require.Equal(t, http.StatusOK, w.Code)
	var got struct {
		Item     HistoryItem `json:"item"`
		Favorite bool        `json:"favorite"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.True(t, got.Favorite)
	assert.Equal(t, "ns/a.jpg", got.Item.ImageURI)
	assert.Equal(t, analyses.ModeFallback, got.Item.Analysis.Mode)

	w = doRequest(r, http.MethodDelete, "/api/v1/history/"+id)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"deleted":true}`, w.Body.String())

	w = doRequest(r, http.MethodGet, "/api/v1/history/"+id)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "not_found")

	w = doRequest(r, http.MethodPost, "/api/v1/history/"+id+"/favorite")
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = doRequest(r, http.MethodDelete, "/api/v1/history/"+id)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHistoryStatsRecentCountAndClear(t *testing.T) {
	r, svc := setupHistoryRouter(t)
	ctx := context.Background()
	for _, ts := range []string{"2025-06-01T00:00:00Z", "2025-06-14T00:00:00Z", "2025-03-01T00:00:00Z", "2025-06-12T00:00:00Z"} {
		_, err := svc.SaveAnalysis(ctx, analysisFor("Milho", ts != "2025-03-01T00:00:00Z", ts), "", nil)
		require.NoError(t, err)
	}

	w := doRequest(r, http.MethodGet, "/api/v1/history/stats")
	require.Equal(t, http.StatusOK, w.Code)
	var st Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.Equal(t, 4, st.Total)
	assert.Equal(t, 3, st.Healthy)
	assert.Equal(t, []MonthCount{{Month: "2025-06", Count: 3}, {Month: "2025-03", Count: 1}}, st.ByMonth)

	w = doRequest(r, http.MethodGet, "/api/v1/history/recent?limit=2")
	require.Equal(t, http.StatusOK, w.Code)
	var recent listResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &recent))
	require.Equal(t, 2, recent.Count)
	assert.Equal(t, "2025-06-14T00:00:00Z", recent.Items[0].Timestamp)
	assert.Equal(t, "2025-06-12T00:00:00Z", recent.Items[1].Timestamp)

	w = doRequest(r, http.MethodGet, "/api/v1/history/count")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"days":30,"count":3}`, w.Body.String())

	w = doRequest(r, http.MethodGet, "/api/v1/history/count?days=-1")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(r, http.MethodDelete, "/api/v1/history")
	assert.Equal(t, http.StatusNoContent, w.Code)
	items, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)
}
