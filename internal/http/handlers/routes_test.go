package handlers

import (
	"context"
	"encoding/json"
	"net"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
	"gorm.io/gorm"

	"callstats/internal/config"
	dbpkg "callstats/internal/db"
	"callstats/internal/telemetry"
)

type testServer struct {
	t      *testing.T
	db     *gorm.DB
	client *fasthttp.Client
	stats  *telemetry.Stats
}

func newTestServer(t *testing.T, rec CallRecorder) *testServer {
	t.Helper()

	cfg := &config.Config{
		Environment:  "testing",
		Version:      "1.0.0",
		LogLevel:     "ERROR",
		DBPoolSize:   1,
		DatabaseHost: "localhost",
		DatabasePort: 5432,
		DatabaseName: "infraprime",
	}
	gdb, err := dbpkg.Open(sqlite.Open(filepath.Join(t.TempDir(), "api.db")), cfg, nil)
	require.NoError(t, err)
	require.NoError(t, dbpkg.Migrate(gdb))

	store := dbpkg.NewCallStore(gdb)
	reg := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(reg)
	if rec == nil {
		rec = telemetry.NewRecorder(store, nil, metrics, time.Second)
	}
	stats := telemetry.NewStats(store, nil, metrics, time.Second)

	r := NewRouter(Deps{DB: gdb, Config: cfg, Recorder: rec, Stats: stats, Gatherer: reg})

	ln := fasthttputil.NewInmemoryListener()
	srv := &fasthttp.Server{Handler: r.Handler}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() {
		_ = srv.Shutdown()
		_ = dbpkg.Close(gdb)
	})

	client := &fasthttp.Client{Dial: func(string) (net.Conn, error) { return ln.Dial() }}
	return &testServer{t: t, db: gdb, client: client, stats: stats}
}

func (s *testServer) do(method, path, body string) (int, map[string]any) {
	s.t.Helper()
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI("http://callstats.test" + path)
	req.Header.SetMethod(method)
	req.Header.SetUserAgent("handlers-test")
	if body != "" {
		req.Header.SetContentType("application/json")
		req.SetBodyString(body)
	}
	require.NoError(s.t, s.client.DoTimeout(req, resp, 5*time.Second))

	var out map[string]any
	if strings.HasPrefix(string(resp.Header.ContentType()), "application/json") {
		require.NoError(s.t, json.Unmarshal(resp.Body(), &out), string(resp.Body()))
	}
	return resp.StatusCode(), out
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)

	code, body := s.do("GET", "/health", "")
	assert.Equal(t, fasthttp.StatusOK, code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "healthy", body["database"])
	assert.Equal(t, "testing", body["environment"])
	assert.Equal(t, "1.0.0", body["version"])
	assert.Equal(t, "backend-api", body["service"])
	assert.NotEmpty(t, body["timestamp"])

	assert.Equal(t, int64(1), s.stats.CountForEndpoint(context.Background(), "/health"))
}

func TestHealthReportsUnhealthyDatabase(t *testing.T) {
	s := newTestServer(t, nil)
	require.NoError(t, dbpkg.Close(s.db))

	code, body := s.do("GET", "/health", "")
	assert.Equal(t, fasthttp.StatusServiceUnavailable, code)
	assert.Equal(t, "unhealthy", body["database"])
}

func TestDataEndpoint(t *testing.T) {
	s := newTestServer(t, nil)
	t.Setenv("AWS_REGION", "")

	code, body := s.do("GET", "/api/data", "")
	assert.Equal(t, fasthttp.StatusOK, code)
	assert.Equal(t, "API is working perfectly!", body["message"])
	assert.Equal(t, "testing", body["environment"])
	// The call is recorded before the total is read.
	assert.Equal(t, 1.0, body["total_requests"])

	info, ok := body["server_info"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "us-east-1", info["region"])
}

func TestUsersLifecycle(t *testing.T) {
	s := newTestServer(t, nil)

	code, body := s.do("GET", "/api/users", "")
	assert.Equal(t, fasthttp.StatusOK, code)
	assert.Equal(t, 0.0, body["count"])

	code, body = s.do("POST", "/api/users", `{"name":"New Test User","email":"newtest@example.com"}`)
	require.Equal(t, fasthttp.StatusCreated, code)
	assert.Equal(t, "User created successfully", body["message"])
	user, ok := body["user"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "New Test User", user["name"])
	assert.Equal(t, "newtest@example.com", user["email"])
	assert.NotEmpty(t, user["id"])
	assert.NotEmpty(t, user["created_at"])

	code, body = s.do("POST", "/api/users", `{"name":"Another","email":"newtest@example.com"}`)
	assert.Equal(t, fasthttp.StatusConflict, code)
	assert.Contains(t, body["error"], "already exists")

	code, body = s.do("GET", "/api/users", "")
	assert.Equal(t, fasthttp.StatusOK, code)
	assert.Equal(t, 1.0, body["count"])

	// Two list calls and one successful create; the conflict is not recorded.
	assert.Equal(t, int64(3), s.stats.CountForEndpoint(context.Background(), "/api/users"))
}

func TestCreateUserValidation(t *testing.T) {
	s := newTestServer(t, nil)

	cases := []struct {
		name string
		body string
	}{
		{"missing name", `{"email":"test@example.com"}`},
		{"missing email", `{"name":"Test User"}`},
		{"invalid json", `invalid json`},
		{"empty body", ``},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, body := s.do("POST", "/api/users", tc.body)
			assert.Equal(t, fasthttp.StatusBadRequest, code)
			assert.NotEmpty(t, body["error"])
		})
	}

	_, body := s.do("POST", "/api/users", `{"email":"test@example.com"}`)
	assert.Contains(t, strings.ToLower(body["error"].(string)), "required")
}

func TestStatsScenario(t *testing.T) {
	s := newTestServer(t, nil)

	for _, p := range []string{"/health", "/api/data", "/health", "/api/data", "/health"} {
		code, _ := s.do("GET", p, "")
		require.Equal(t, fasthttp.StatusOK, code)
	}
	_, err := dbpkg.CreateUser(context.Background(), s.db, "Test User 1", "test1@example.com")
	require.NoError(t, err)

	code, body := s.do("GET", "/api/stats", "")
	require.Equal(t, fasthttp.StatusOK, code)
	assert.Equal(t, 1.0, body["total_users"])
	assert.Equal(t, 5.0, body["total_api_calls"])
	assert.Equal(t, 3.0, body["health_checks"])
	assert.Equal(t, 2.0, body["data_requests"])
	assert.Equal(t, "0h 0m", body["uptime"])
	assert.NotEmpty(t, body["timestamp"])

	// The stats call itself is recorded after the counts are taken.
	_, body = s.do("GET", "/api/stats", "")
	assert.Equal(t, 6.0, body["total_api_calls"])
}

func TestStatsOnEmptyLog(t *testing.T) {
	s := newTestServer(t, nil)

	code, body := s.do("GET", "/api/stats", "")
	require.Equal(t, fasthttp.StatusOK, code)
	assert.Equal(t, 0.0, body["total_api_calls"])
	assert.Equal(t, "Unknown", body["uptime"])
}

// failingRecorder stands in for a recorder whose store is down. It still
// never fails the request.
type failingRecorder struct {
	mu    sync.Mutex
	calls []string
}

func (f *failingRecorder) Record(_ context.Context, endpoint, method, _, _ string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, method+" "+endpoint)
}

func TestRequestsSucceedWhenTelemetryIsDown(t *testing.T) {
	rec := &failingRecorder{}
	s := newTestServer(t, rec)
	require.NoError(t, s.db.Migrator().DropTable(&dbpkg.APICall{}))

	code, _ := s.do("GET", "/health", "")
	assert.Equal(t, fasthttp.StatusOK, code)

	code, body := s.do("GET", "/api/stats", "")
	require.Equal(t, fasthttp.StatusOK, code)
	assert.Equal(t, 0.0, body["total_api_calls"])
	assert.Equal(t, 0.0, body["health_checks"])
	assert.Equal(t, "Unknown", body["uptime"])

	assert.Equal(t, []string{"GET /health", "GET /api/stats"}, rec.calls)
}

func TestRealRecorderWithMissingTableDoesNotFailRequests(t *testing.T) {
	s := newTestServer(t, nil)
	require.NoError(t, s.db.Migrator().DropTable(&dbpkg.APICall{}))

	code, body := s.do("GET", "/api/data", "")
	assert.Equal(t, fasthttp.StatusOK, code)
	assert.Equal(t, 0.0, body["total_requests"])

	code, _ = s.do("POST", "/api/users", `{"name":"A","email":"a@example.com"}`)
	assert.Equal(t, fasthttp.StatusCreated, code)
}

func TestTestDBReportsErrorOffPostgres(t *testing.T) {
	s := newTestServer(t, nil)

	code, body := s.do("GET", "/api/test-db", "")
	assert.Equal(t, fasthttp.StatusServiceUnavailable, code)
	assert.Equal(t, "error", body["database_status"])
	assert.NotEmpty(t, body["error"])
	assert.Equal(t, int64(0), s.stats.CountForEndpoint(context.Background(), "/api/test-db"))
}

func TestNotFoundAndMethodNotAllowed(t *testing.T) {
	s := newTestServer(t, nil)

	code, body := s.do("GET", "/nonexistent-endpoint", "")
	assert.Equal(t, fasthttp.StatusNotFound, code)
	assert.Equal(t, "Endpoint not found", body["error"])
	assert.Equal(t, 404.0, body["status"])

	code, _ = s.do("PATCH", "/health", "")
	assert.Equal(t, fasthttp.StatusMethodNotAllowed, code)

	assert.Equal(t, int64(0), s.stats.TotalCalls(context.Background()))
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, nil)
	s.do("GET", "/health", "")

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)
	req.SetRequestURI("http://callstats.test/metrics?prefix=callstats_calls_")
	require.NoError(t, s.client.DoTimeout(req, resp, 5*time.Second))

	assert.Equal(t, fasthttp.StatusOK, resp.StatusCode())
	text := string(resp.Body())
	assert.Contains(t, text, "callstats_calls_recorded_total 1")
	assert.NotContains(t, text, "callstats_stats_query_failures_total")
}

func TestFormatTimestamp(t *testing.T) {
	assert.Equal(t, "", FormatTimestamp(time.Time{}))
	at := time.Date(2025, time.July, 4, 8, 5, 3, 120000000, time.FixedZone("x", 3600))
	assert.Equal(t, "2025-07-04T07:05:03.120000", FormatTimestamp(at))
	assert.Equal(t, "2025-07-04T07:05:03", FormatTimestamp(at.Truncate(time.Second)))
	assert.Equal(t, "2025-07-04T07:05:03.000001", FormatTimestamp(at.Truncate(time.Second).Add(time.Microsecond)))
	assert.Equal(t, "2025-07-04T07:05:03", FormatTimestamp(at.Truncate(time.Second).Add(999)))
}

// ctxRecorder keeps the context each Record call received.
type ctxRecorder struct {
	mu   sync.Mutex
	ctxs []context.Context
}

func (c *ctxRecorder) Record(ctx context.Context, _, _, _, _ string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ctxs = append(c.ctxs, ctx)
}

func TestRecordContextOutlivesServerShutdown(t *testing.T) {
	rec := &ctxRecorder{}
	s := newTestServer(t, rec)

	code, _ := s.do("GET", "/health", "")
	require.Equal(t, fasthttp.StatusOK, code)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.ctxs, 1)
	assert.Nil(t, rec.ctxs[0].Done(), "record context must not be cancelled by the server")
	assert.NoError(t, rec.ctxs[0].Err())
}
