package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/tripkit/internal/app"
	"github.com/hpungsan/tripkit/internal/config"
	"github.com/hpungsan/tripkit/internal/trip"
	"github.com/hpungsan/tripkit/internal/weather"
)

type offlineProvider struct{}

func (offlineProvider) Name() string { return "offline" }

func (offlineProvider) Fetch(context.Context, trip.Location) (weather.Forecast, error) {
	return weather.Forecast{}, context.DeadlineExceeded
}

func testApp(t *testing.T, cfg *config.Config) *app.App {
	t.Helper()
	a, err := app.Open(context.Background(), app.Options{
		BaseDir:         t.TempDir(),
		Config:          cfg,
		Now:             func() time.Time { return time.Date(2026, 1, 9, 17, 20, 0, 0, time.Local) },
		WeatherProvider: offlineProvider{},
	})
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	decodeBody(t, rec, &payload)
	return payload.Error.Code
}

func TestItinerary(t *testing.T) {
	h := NewRouter(testApp(t, nil))

	rec := do(t, h, "GET", "/api/itinerary", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	var resp ItineraryResponse
	decodeBody(t, rec, &resp)
	require.Len(t, resp.Days, 5)
	assert.Equal(t, "2026-01-11", resp.Days[4].Date)
	assert.Equal(t, 16, resp.Progress.Total)
}

func TestItem_Lookup(t *testing.T) {
	h := NewRouter(testApp(t, nil))

	rec := do(t, h, "GET", "/api/items/303", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var ref struct {
		DayID int       `json:"day_id"`
		Date  string    `json:"date"`
		Item  trip.Item `json:"item"`
	}
	decodeBody(t, rec, &ref)
	assert.Equal(t, 3, ref.DayID)
	assert.Equal(t, "2026-01-09", ref.Date)
	assert.Equal(t, "17:15", ref.Item.Time)

	rec = do(t, h, "GET", "/api/items/9999", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", errorCode(t, rec))

	rec = do(t, h, "GET", "/api/items/abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_REQUEST", errorCode(t, rec))

	rec = do(t, h, "GET", "/api/days/8", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCheckIn(t *testing.T) {
	a := testApp(t, nil)
	h := NewRouter(a)

	rec := do(t, h, "POST", "/api/items/303/checkin", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp ItemResponse
	decodeBody(t, rec, &resp)
	require.True(t, resp.Found)
	assert.Equal(t, "17:20", *resp.Item.Item.ActualArrival)

	rec = do(t, h, "POST", "/api/items/303/checkin", `{"kind":"departure"}`)
	decodeBody(t, rec, &resp)
	assert.Equal(t, "17:20", *resp.Item.Item.ActualDeparture)

	rec = do(t, h, "PUT", "/api/items/303/checkin", `{"time":"18:05"}`)
	decodeBody(t, rec, &resp)
	assert.Equal(t, "18:05", *resp.Item.Item.ActualArrival)

	rec = do(t, h, "PUT", "/api/items/303/checkin", `{"time":null,"kind":"departure"}`)
	decodeBody(t, rec, &resp)
	assert.Nil(t, resp.Item.Item.ActualDeparture)
	assert.NotNil(t, resp.Item.Item.ActualArrival)

	rec = do(t, h, "PUT", "/api/items/303/checkin", `{"time":"6pm"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, "POST", "/api/items/303/checkin", `{"kind":"both"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, "POST", "/api/items/303/checkin", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Unknown stop: no error, nothing changes.
	rec = do(t, h, "POST", "/api/items/9999/checkin", "")
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &resp)
	assert.False(t, resp.Found)
	assert.Equal(t, 1, a.Itinerary.Progress().Arrived)
}

func TestAddUpdateDeleteItem(t *testing.T) {
	a := testApp(t, nil)
	h := NewRouter(a)

	rec := do(t, h, "POST", "/api/days/5/items", `{"time":"06:00","location":"Hotel breakfast","type":"food"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var added AddItemResponse
	decodeBody(t, rec, &added)
	require.NotZero(t, added.ID)
	require.Len(t, added.Day.Items, 2)
	assert.Equal(t, added.ID, added.Day.Items[0].ID)

	rec = do(t, h, "POST", "/api/days/9/items", `{"time":"06:00"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var none AddItemResponse
	decodeBody(t, rec, &none)
	assert.Zero(t, none.ID)

	rec = do(t, h, "POST", "/api/days/5/items", `{"location":"no time"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	path := "/api/items/" + jsonNumber(added.ID)
	rec = do(t, h, "PATCH", path, `{"time":"09:00","desc":"late start"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	day, _ := a.Itinerary.Day(5)
	assert.Equal(t, added.ID, day.Items[1].ID)
	assert.Equal(t, "late start", day.Items[1].Desc)
	assert.Equal(t, "Hotel breakfast", day.Items[1].Location)

	rec = do(t, h, "PATCH", path, `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, "DELETE", path, "")
	var deleted ItemResponse
	decodeBody(t, rec, &deleted)
	assert.True(t, deleted.Found)

	day, _ = a.Itinerary.Day(5)
	assert.Len(t, day.Items, 1)
}

func TestChecklistAndLedger(t *testing.T) {
	h := NewRouter(testApp(t, nil))

	rec := do(t, h, "POST", "/api/checklist/luggage/1/toggle", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var cl ChecklistResponse
	decodeBody(t, rec, &cl)
	assert.True(t, cl.Groups[0].Items[0].Completed)
	assert.Equal(t, 5, cl.Progress)

	rec = do(t, h, "GET", "/api/expenses", "")
	var ex ExpensesResponse
	decodeBody(t, rec, &ex)
	assert.Equal(t, float64(100000), ex.Summary.Budget)
	assert.Empty(t, ex.Expenses)

	rec = do(t, h, "GET", "/api/vouchers", "")
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestWeather_OfflineServesDefault(t *testing.T) {
	h := NewRouter(testApp(t, nil))

	rec := do(t, h, "GET", "/api/weather", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Stale bool                 `json:"stale"`
		Error string               `json:"error"`
		Daily []weather.DaySummary `json:"daily"`
	}
	decodeBody(t, rec, &resp)
	assert.True(t, resp.Stale)
	assert.NotEmpty(t, resp.Error)
	assert.Len(t, resp.Daily, 5)
}

func TestCORS(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.CORSOrigins = []string{"http://localhost:5173"}
	h := NewRouter(testApp(t, cfg))

	req := httptest.NewRequest("GET", "/api/itinerary", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest("GET", "/api/itinerary", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func jsonNumber(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}
