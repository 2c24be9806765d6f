package rest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"graphstore/application/commands/bus"
	cmdhandlers "graphstore/application/commands/handlers"
	querybus "graphstore/application/queries/bus"
	queryhandlers "graphstore/application/queries/handlers"
	"graphstore/application/services"
	domainconfig "graphstore/domain/config"
	"graphstore/infrastructure/config"
	"graphstore/infrastructure/persistence/memory"
	"graphstore/pkg/observability"
)

type testServer struct {
	handler http.Handler
}

func newTestServer(t *testing.T, mutate func(*config.Config)) *testServer {
	t.Helper()
	logger := zaptest.NewLogger(t)
	cfg := config.Defaults()
	if mutate != nil {
		mutate(cfg)
	}

	domain := domainconfig.DefaultDomainConfig()
	collector := observability.NewCollector("graphstore")
	svc := services.NewGraphService(memory.NewStore(logger), domain, nil, collector, nil, logger)

	commandBus := bus.NewCommandBus(bus.MetricsMiddleware(collector))
	require.NoError(t, cmdhandlers.Register(commandBus, svc))
	queryBus := querybus.NewQueryBus(querybus.MetricsMiddleware(collector))
	require.NoError(t, queryhandlers.Register(queryBus, queryhandlers.NewGraphQueryHandler(svc, domain.LenientPolicy())))

	return &testServer{handler: NewRouter(commandBus, queryBus, collector, cfg, logger).Setup()}
}

func (s *testServer) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var decoded map[string]interface{}
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded), rec.Body.String())
	}
	return rec, decoded
}

func errorCode(body map[string]interface{}) string {
	e, _ := body["error"].(map[string]interface{})
	code, _ := e["code"].(string)
	return code
}

func TestNodeRoutes(t *testing.T) {
	s := newTestServer(t, nil)

	rec, body := s.do(t, http.MethodPost, "/api/v2/nodes",
		`{"id":"n1","typeId":"codex.concept","state":"ice","locale":"en","title":"Ice","meta":{"k":[1, 2]}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, true, body["success"])
	node := body["node"].(map[string]interface{})
	assert.Equal(t, "n1", node["id"])
	assert.Equal(t, map[string]interface{}{"k": []interface{}{float64(1), float64(2)}}, node["meta"])

	t.Run("get", func(t *testing.T) {
		rec, body := s.do(t, http.MethodGet, "/api/v2/nodes/n1", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Ice", body["node"].(map[string]interface{})["title"])
	})

	t.Run("get missing", func(t *testing.T) {
		rec, body := s.do(t, http.MethodGet, "/api/v2/nodes/ghost", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "NODE_NOT_FOUND", errorCode(body))
	})

	t.Run("missing type id", func(t *testing.T) {
		rec, _ := s.do(t, http.MethodPost, "/api/v2/nodes", `{"title":"untyped"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		rec, body := s.do(t, http.MethodPost, "/api/v2/nodes", `{"typeId":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "INVALID_REQUEST", errorCode(body))
	})

	t.Run("query clamps bad paging", func(t *testing.T) {
		rec, body := s.do(t, http.MethodGet, "/api/v2/nodes?typeId=codex.concept&skip=-3&take=abc", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.EqualValues(t, 1, body["totalCount"])
		assert.EqualValues(t, 0, body["skip"])
		assert.Len(t, body["nodes"], 1)
	})

	t.Run("legacy prefix", func(t *testing.T) {
		rec, body := s.do(t, http.MethodGet, "/storage-endpoints/nodes/n1", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "n1", body["node"].(map[string]interface{})["id"])
		assert.Equal(t, "true", rec.Header().Get("X-API-Deprecated"))
	})
}

func TestEdgeRoutes(t *testing.T) {
	s := newTestServer(t, nil)
	for _, id := range []string{"a", "b"} {
		rec, _ := s.do(t, http.MethodPost, "/api/v2/nodes", `{"id":"`+id+`","typeId":"codex.concept"}`)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec, body := s.do(t, http.MethodPost, "/api/v2/edges", `{"fromId":"a","toId":"b","role":"rel","weight":0.5}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "rel", body["edge"].(map[string]interface{})["role"])

	t.Run("dangling", func(t *testing.T) {
		rec, body := s.do(t, http.MethodPost, "/api/v2/edges", `{"fromId":"a","toId":"zz","role":"rel","weight":1}`)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, "DANGLING_REFERENCE", errorCode(body))

		_, body = s.do(t, http.MethodGet, "/api/v2/edges?nodeId=zz", "")
		assert.EqualValues(t, 0, body["totalCount"])
	})

	t.Run("get by pair and role", func(t *testing.T) {
		rec, body := s.do(t, http.MethodGet, "/api/v2/edges/a/b?role=rel", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.EqualValues(t, 0.5, body["edge"].(map[string]interface{})["weight"])

		rec, body = s.do(t, http.MethodGet, "/api/v2/edges/a/b?role=other", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "EDGE_NOT_FOUND", errorCode(body))
	})

	t.Run("node edges", func(t *testing.T) {
		rec, body := s.do(t, http.MethodGet, "/api/v2/nodes/b/edges", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, body["outgoing"], 0)
		assert.Len(t, body["incoming"], 1)

		rec, body = s.do(t, http.MethodGet, "/api/v2/nodes/ghost/edges", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "NODE_NOT_FOUND", errorCode(body))
	})

	t.Run("query by role", func(t *testing.T) {
		rec, body := s.do(t, http.MethodGet, "/api/v2/edges?role=rel", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.EqualValues(t, 1, body["totalCount"])
	})
}

func TestIdentifiersContainingSlash(t *testing.T) {
	s := newTestServer(t, nil)
	for _, id := range []string{"codex/a", "codex/b"} {
		rec, _ := s.do(t, http.MethodPost, "/api/v2/nodes", `{"id":"`+id+`","typeId":"codex.concept"}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
	rec, _ := s.do(t, http.MethodPost, "/api/v2/edges", `{"fromId":"codex/a","toId":"codex/b","role":"rel","weight":1}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	tests := []struct {
		name  string
		path  string
		check func(t *testing.T, body map[string]interface{})
	}{
		{
			name: "get node",
			path: "/api/v2/nodes/codex%2Fa",
			check: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "codex/a", body["node"].(map[string]interface{})["id"])
			},
		},
		{
			name: "node edges",
			path: "/api/v2/nodes/codex%2Fa/edges",
			check: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "codex/a", body["nodeId"])
				assert.Len(t, body["outgoing"], 1)
			},
		},
		{
			name: "get edge",
			path: "/api/v2/edges/codex%2Fa/codex%2Fb?role=rel",
			check: func(t *testing.T, body map[string]interface{}) {
				edge := body["edge"].(map[string]interface{})
				assert.Equal(t, "codex/a", edge["fromId"])
				assert.Equal(t, "codex/b", edge["toId"])
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := s.do(t, http.MethodGet, tt.path, "")
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			tt.check(t, body)
		})
	}
}

func TestStatsAndEvents(t *testing.T) {
	s := newTestServer(t, nil)
	s.do(t, http.MethodPost, "/api/v2/nodes", `{"id":"e1","typeId":"codex.resonance.event","state":"water"}`)
	s.do(t, http.MethodPost, "/api/v2/nodes", `{"id":"c1","typeId":"codex.concept"}`)

	rec, body := s.do(t, http.MethodGet, "/api/v2/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	stats := body["stats"].(map[string]interface{})
	assert.EqualValues(t, 2, stats["nodeCount"])
	assert.EqualValues(t, 2, stats["distinctTypeCount"])
	assert.Equal(t, "memory", stats["storageBackend"])

	tests := []struct {
		name   string
		query  string
		status int
		count  int
		take   int
	}{
		{name: "defaults", query: "", status: http.StatusOK, count: 1, take: 50},
		{name: "state filter", query: "?state=ice", status: http.StatusOK, count: 0, take: 50},
		{name: "non numeric take", query: "?take=ten", status: http.StatusBadRequest},
		{name: "take above ceiling is clamped", query: "?take=501", status: http.StatusOK, count: 1, take: 500},
		{name: "negative skip", query: "?skip=-1", status: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := s.do(t, http.MethodGet, "/api/v2/events"+tt.query, "")
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.status != http.StatusOK {
				assert.Equal(t, "INVALID_PAGINATION", errorCode(body))
				return
			}
			assert.EqualValues(t, tt.count, body["totalCount"])
			assert.EqualValues(t, tt.take, body["take"])
		})
	}
}

func TestOperationalRoutes(t *testing.T) {
	s := newTestServer(t, nil)

	rec, body := s.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])

	rec, body = s.do(t, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", body["status"])

	rec, _ = s.do(t, http.MethodGet, "/api/v1/nodes/n1?x=1", "")
	assert.Equal(t, http.StatusPermanentRedirect, rec.Code)
	assert.Equal(t, "/api/v2/nodes/n1?x=1", rec.Header().Get("Location"))

	rec, _ = s.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
	assert.Contains(t, rec.Body.String(), `route="/health"`)

	rec, _ = s.do(t, http.MethodGet, "/nowhere", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) {
		cfg.RateLimitRPS = 0.01
		cfg.RateLimitBurst = 2
	})

	for i := 0; i < 2; i++ {
		rec, _ := s.do(t, http.MethodGet, "/api/v2/stats", "")
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec, body := s.do(t, http.MethodGet, "/api/v2/stats", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RATE_LIMIT", body["error"].(map[string]interface{})["type"])
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// Operational routes are not limited.
	rec, _ = s.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
