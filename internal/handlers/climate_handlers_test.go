package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/matryer/is"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"climate-api/internal/models"
	"climate-api/internal/repository"
	"climate-api/internal/repository/repotest"
	"climate-api/internal/services"
	"climate-api/pkg/database"
	"climate-api/pkg/logging"
	"climate-api/pkg/metrics"
)

type testServer struct {
	router  *mux.Router
	db      *database.DB
	metrics *metrics.Collector
}

func newTestServer(t *testing.T, stations []models.Station, measurements []models.Measurement) *testServer {
	t.Helper()

	db := repotest.Open(t, repotest.WriteDataset(t, stations, measurements))
	collector := metrics.NewCollectorWith("climate_test", prometheus.NewRegistry())
	logger := logging.Discard()

	repo := repository.NewClimateRepository(db, logger, collector)
	service := services.NewClimateService(repo, logger, collector)

	router := mux.NewRouter()
	NewClimateHandler(service, logger, collector).RegisterRoutes(router)

	return &testServer{router: router, db: db, metrics: collector}
}

func newHawaiiServer(t *testing.T) *testServer {
	t.Helper()
	stations, measurements := repotest.Hawaii()
	return newTestServer(t, stations, measurements)
}

func (s *testServer) get(path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestHome(t *testing.T) {
	is := is.New(t)
	srv := newHawaiiServer(t)

	rec := srv.get("/")

	is.Equal(rec.Code, http.StatusOK)
	is.True(strings.HasPrefix(rec.Header().Get("Content-Type"), "text/html"))
	body := rec.Body.String()
	is.True(strings.HasPrefix(body, "Welcome to the Climate App!"))
	for _, route := range []string{"/api/v1.0/precipitation", "/api/v1.0/stations", "/api/v1.0/tobs", "/api/v1.0/&lt;start&gt;/&lt;end&gt;"} {
		is.True(strings.Contains(body, route)) // home page lists every route
	}
}

func TestGetPrecipitation(t *testing.T) {
	is := is.New(t)
	srv := newHawaiiServer(t)

	rec := srv.get("/api/v1.0/precipitation")
	is.Equal(rec.Code, http.StatusOK)
	is.Equal(rec.Header().Get("Content-Type"), "application/json")

	var series map[string]*float64
	decode(t, rec, &series)

	is.Equal(len(series), 6)
	is.True(series["2016-08-23"] != nil) // cutoff day is inside the window

	_, before := series["2016-08-22"]
	is.True(!before) // the day before the cutoff is not

	nullDay, present := series["2017-01-15"]
	is.True(present)
	is.True(nullDay == nil) // null precipitation stays null

	is.Equal(*series["2017-08-23"], 0.45) // last row for a date wins
}

func TestGetStations(t *testing.T) {
	is := is.New(t)
	srv := newHawaiiServer(t)

	rec := srv.get("/api/v1.0/stations")
	is.Equal(rec.Code, http.StatusOK)

	var stations []map[string]string
	decode(t, rec, &stations)

	is.Equal(len(stations), 3)
	is.Equal(stations[0], map[string]string{"station": "USC00519397", "name": "WAIKIKI 717.2, HI US"})
}

func TestGetStations_Empty(t *testing.T) {
	is := is.New(t)
	srv := newTestServer(t, nil, nil)

	rec := srv.get("/api/v1.0/stations")

	is.Equal(rec.Code, http.StatusOK)
	is.Equal(strings.TrimSpace(rec.Body.String()), "[]")
}

func TestGetTemperatureObservations(t *testing.T) {
	is := is.New(t)
	srv := newHawaiiServer(t)

	rec := srv.get("/api/v1.0/tobs")
	is.Equal(rec.Code, http.StatusOK)

	var observations []struct {
		Date string   `json:"date"`
		Tobs *float64 `json:"tobs"`
	}
	decode(t, rec, &observations)

	// USC00519281 rows on or after 2016-08-23
	is.Equal(len(observations), 3)
	is.Equal(observations[0].Date, "2016-08-23")
	is.Equal(*observations[0].Tobs, 77.0)
	is.Equal(observations[2].Date, "2017-08-18")
}

func TestGetTemperatureStats(t *testing.T) {
	tests := []struct {
		name string
		path string
		want string
	}{
		{
			name: "range",
			path: "/api/v1.0/2017-01-01/2017-01-31",
			want: `{"TMIN":60,"TAVG":70,"TMAX":80}`,
		},
		{
			name: "open ended",
			path: "/api/v1.0/2017-08-23",
			want: `{"TMIN":81,"TAVG":81.5,"TMAX":82}`,
		},
		{
			name: "no matching rows",
			path: "/api/v1.0/2099-01-01",
			want: `{"TMIN":null,"TAVG":null,"TMAX":null}`,
		},
		{
			name: "reversed range",
			path: "/api/v1.0/2017-01-31/2017-01-01",
			want: `{"TMIN":null,"TAVG":null,"TMAX":null}`,
		},
	}

	srv := newHawaiiServer(t)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is := is.New(t)

			rec := srv.get(tt.path)

			is.Equal(rec.Code, http.StatusOK)
			is.Equal(strings.TrimSpace(rec.Body.String()), tt.want)
		})
	}
}

func TestLiteralRoutesWinOverStart(t *testing.T) {
	is := is.New(t)
	srv := newHawaiiServer(t)

	rec := srv.get("/api/v1.0/stations")
	is.Equal(rec.Code, http.StatusOK)

	is.Equal(testutil.ToFloat64(srv.metrics.APIRequestsTotal.WithLabelValues("/api/v1.0/stations", "GET", "200")), 1.0)
	is.Equal(testutil.ToFloat64(srv.metrics.APIRequestsTotal.WithLabelValues("/api/v1.0/{start}", "GET", "200")), 0.0)
}

func TestEmptyDataset(t *testing.T) {
	stations, _ := repotest.Hawaii()
	srv := newTestServer(t, stations, nil)

	for _, path := range []string{"/api/v1.0/precipitation", "/api/v1.0/tobs"} {
		t.Run(path, func(t *testing.T) {
			is := is.New(t)

			rec := srv.get(path)
			is.Equal(rec.Code, http.StatusInternalServerError)

			var resp ErrorResponse
			decode(t, rec, &resp)
			is.Equal(resp.Code, http.StatusInternalServerError)
			is.Equal(resp.Message, repository.ErrEmptyDataset.Error())
		})
	}

	is := is.New(t)
	is.Equal(testutil.ToFloat64(srv.metrics.APIErrorsTotal.WithLabelValues("empty_dataset", "/api/v1.0/precipitation")), 1.0)
}

func TestHealthCheck(t *testing.T) {
	is := is.New(t)
	srv := newHawaiiServer(t)

	rec := srv.get("/health")
	is.Equal(rec.Code, http.StatusOK)

	var body map[string]string
	decode(t, rec, &body)
	is.Equal(body["status"], "healthy")

	is.NoErr(srv.db.Close())

	rec = srv.get("/health")
	is.Equal(rec.Code, http.StatusServiceUnavailable)
	decode(t, rec, &body)
	is.Equal(body["status"], "unhealthy")
}

func TestRequestID(t *testing.T) {
	is := is.New(t)
	srv := newHawaiiServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1.0/stations", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	is.Equal(rec.Header().Get(RequestIDHeader), "req-123") // caller's ID is echoed

	rec = srv.get("/api/v1.0/stations")
	is.True(rec.Header().Get(RequestIDHeader) != "") // one is generated otherwise
}

func TestRequestID_Context(t *testing.T) {
	is := is.New(t)

	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logging.RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	is.Equal(seen, "abc")
}

func TestInstrument_UsesRouteTemplate(t *testing.T) {
	is := is.New(t)
	srv := newHawaiiServer(t)

	srv.get("/api/v1.0/2017-01-01/2017-01-31")
	srv.get("/api/v1.0/2016-01-01/2016-12-31")

	is.Equal(testutil.ToFloat64(srv.metrics.APIRequestsTotal.WithLabelValues("/api/v1.0/{start}/{end}", "GET", "200")), 2.0)
}

func TestOpenAPISpec(t *testing.T) {
	is := is.New(t)
	srv := newHawaiiServer(t)

	rec := srv.get("/api/docs/openapi.json")
	is.Equal(rec.Code, http.StatusOK)

	var doc struct {
		Info  map[string]string          `json:"info"`
		Paths map[string]json.RawMessage `json:"paths"`
	}
	decode(t, rec, &doc)

	is.Equal(doc.Info["title"], "Climate API")
	for _, path := range []string{routePrecipitation, routeStations, routeTobs, routeStart, routeStartEnd} {
		_, ok := doc.Paths[path]
		is.True(ok) // every climate route is documented
	}
}

func TestSwaggerUI(t *testing.T) {
	is := is.New(t)
	srv := newHawaiiServer(t)

	rec := srv.get("/api/docs")

	is.Equal(rec.Code, http.StatusOK)
	is.True(strings.Contains(rec.Body.String(), "<title>Climate API Documentation</title>"))
	is.True(strings.Contains(rec.Body.String(), "openapi.json"))
}
