package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/kidlearn/stars-hub/internal/application/command"
	"github.com/kidlearn/stars-hub/internal/application/query"
	"github.com/kidlearn/stars-hub/internal/domain/shared"
	"github.com/kidlearn/stars-hub/internal/infrastructure/persistence/memory"
	"github.com/kidlearn/stars-hub/internal/interface/http/handlers"
	"github.com/kidlearn/stars-hub/pkg/logger"
	"github.com/kidlearn/stars-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// FIXTURE
// ══════════════════════════════════════════════════════════════════════════════

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, ...shared.Event) error { return nil }

type envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Error     *APIError       `json:"error"`
	RequestID string          `json:"request_id"`
}

func newTestServer(t *testing.T, health *handlers.HealthChecker, keyHashes ...string) *Server {
	t.Helper()

	store := memory.NewStore()
	clk := timeutil.FixedClock{T: timeutil.Date(2024, time.December, 2).Add(9 * time.Hour)}
	log := logger.Nop()

	deps := query.Deps{Children: store, Progress: store, Activity: store, Clock: clk}

	cfg := DefaultConfig()
	cfg.APIKeyHashes = keyHashes

	return NewServer(cfg, Dependencies{
		RecordAttempt: command.NewRecordAttemptHandler(store, nopPublisher{}, log,
			command.RecordAttemptHandlerConfig{Clock: clk}),
		CreateChild:      command.NewCreateChildHandler(store, clk, log),
		DeleteChild:      command.NewDeleteChildHandler(store, log),
		ProgressSummary:  query.NewGetProgressSummaryHandler(deps),
		ListProgress:     query.NewListProgressHandler(deps),
		ProfileSummary:   query.NewGetProfileSummaryHandler(deps),
		ActivityCalendar: query.NewGetActivityCalendarHandler(deps),
		MonthlyStreak:    query.NewGetMonthlyStreakHandler(deps),
		Leaderboard:      query.NewGetLeaderboardHandler(deps),
		Health:           health,
		Logger:           log,
	})
}

func do(t *testing.T, s *Server, method, path string, body interface{}, header http.Header) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func createChild(t *testing.T, s *Server, id string, header http.Header) {
	t.Helper()
	rec, _ := do(t, s, http.MethodPost, "/api/v1/children", map[string]string{"id": id, "name": "Budi"}, header)
	require.Equal(t, http.StatusCreated, rec.Code)
}

var letterQuiz = map[string]interface{}{
	"contentType":  "letter",
	"contentId":    1,
	"activityType": "quiz",
	"completed":    true,
	"score":        85,
}

// ══════════════════════════════════════════════════════════════════════════════
// TESTS
// ══════════════════════════════════════════════════════════════════════════════

func TestServer_RecordAttemptAndRead(t *testing.T) {
	s := newTestServer(t, nil)
	createChild(t, s, "kid-1", nil)

	rec, env := do(t, s, http.MethodPost, "/api/v1/children/kid-1/progress", letterQuiz, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, env.Success)

	var res RecordAttemptResponse
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, 2, res.StarsAdded)
	assert.Equal(t, 2, res.TotalStars)
	assert.Equal(t, "Pemula", res.LevelTitle)
	assert.Equal(t, 1, res.Streak)
	assert.Equal(t, "started", res.StreakOutcome)
	assert.Equal(t, "kid-1", res.Progress.ChildID)
	require.NotNil(t, res.FavoriteModule)
	assert.Equal(t, "letter", *res.FavoriteModule)

	t.Run("summary", func(t *testing.T) {
		rec, env := do(t, s, http.MethodGet, "/api/v1/children/kid-1/progress/summary", nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var sum query.ProgressSummary
		require.NoError(t, json.Unmarshal(env.Data, &sum))
		assert.Equal(t, 1, sum.LettersLearned)
		assert.Equal(t, 2, sum.TotalStars)
	})

	t.Run("by content type", func(t *testing.T) {
		_, env := do(t, s, http.MethodGet, "/api/v1/children/kid-1/progress/letter", nil, nil)
		var records []query.ProgressRecordDTO
		require.NoError(t, json.Unmarshal(env.Data, &records))
		assert.Len(t, records, 1)

		_, env = do(t, s, http.MethodGet, "/api/v1/children/kid-1/progress/animal", nil, nil)
		require.NoError(t, json.Unmarshal(env.Data, &records))
		assert.Empty(t, records)
	})

	t.Run("profile", func(t *testing.T) {
		_, env := do(t, s, http.MethodGet, "/api/v1/children/kid-1/profile", nil, nil)
		var p map[string]interface{}
		require.NoError(t, json.Unmarshal(env.Data, &p))
		assert.Equal(t, "Pemula", p["levelTitle"])
		assert.EqualValues(t, 2, p["totalStars"])
	})

	t.Run("calendar", func(t *testing.T) {
		_, env := do(t, s, http.MethodGet, "/api/v1/children/kid-1/calendar", nil, nil)
		var days []query.DailyActivityDTO
		require.NoError(t, json.Unmarshal(env.Data, &days))
		require.Len(t, days, 1)
		assert.Equal(t, "2024-12-02", days[0].Date)
	})

	t.Run("monthly streak", func(t *testing.T) {
		_, env := do(t, s, http.MethodGet, "/api/v1/children/kid-1/streak?month=2024-12", nil, nil)
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal(env.Data, &m))
		assert.EqualValues(t, 1, m["totalActiveDays"])
		assert.Equal(t, "2024-12", m["month"])
	})

	t.Run("streak calendar", func(t *testing.T) {
		_, env := do(t, s, http.MethodGet, "/api/v1/children/kid-1/streak/calendar", nil, nil)
		var c struct {
			Calendar map[string]interface{} `json:"calendar"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &c))
		assert.Len(t, c.Calendar, 31)
	})

	t.Run("leaderboard", func(t *testing.T) {
		_, env := do(t, s, http.MethodGet, "/api/v1/leaderboard?limit=5", nil, nil)
		var entries []query.LeaderboardEntryDTO
		require.NoError(t, json.Unmarshal(env.Data, &entries))
		require.Len(t, entries, 1)
		assert.Equal(t, 1, entries[0].Rank)
		assert.Equal(t, 2, entries[0].TotalStars)
	})
}

func TestServer_ErrorMapping(t *testing.T) {
	s := newTestServer(t, nil)
	createChild(t, s, "kid-1", nil)

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		status int
		code   string
	}{
		{"score out of range", http.MethodPost, "/api/v1/children/kid-1/progress",
			map[string]interface{}{"contentType": "letter", "contentId": 1, "activityType": "quiz", "score": 150},
			http.StatusBadRequest, "validation_error"},
		{"unknown content type", http.MethodPost, "/api/v1/children/kid-1/progress",
			map[string]interface{}{"contentType": "color", "contentId": 1, "activityType": "quiz"},
			http.StatusBadRequest, "validation_error"},
		{"malformed json", http.MethodPost, "/api/v1/children/kid-1/progress", "{nope",
			http.StatusBadRequest, "invalid_request"},
		{"unknown child", http.MethodPost, "/api/v1/children/ghost/progress", letterQuiz,
			http.StatusNotFound, "not_found"},
		{"unknown child profile", http.MethodGet, "/api/v1/children/ghost/profile", nil,
			http.StatusNotFound, "not_found"},
		{"bad month", http.MethodGet, "/api/v1/children/kid-1/streak?month=December", nil,
			http.StatusBadRequest, "validation_error"},
		{"inverted range", http.MethodGet, "/api/v1/children/kid-1/calendar?startDate=2024-12-05&endDate=2024-12-01", nil,
			http.StatusBadRequest, "validation_error"},
		{"bad content type filter", http.MethodGet, "/api/v1/children/kid-1/progress/colors", nil,
			http.StatusBadRequest, "validation_error"},
		{"bad limit", http.MethodGet, "/api/v1/leaderboard?limit=ten", nil,
			http.StatusBadRequest, "invalid_parameter"},
		{"duplicate child", http.MethodPost, "/api/v1/children", map[string]string{"id": "kid-1", "name": "Again"},
			http.StatusConflict, "conflict"},
		{"unknown route", http.MethodGet, "/api/v2/nothing", nil,
			http.StatusNotFound, "not_found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := do(t, s, tt.method, tt.path, tt.body, nil)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.False(t, env.Success)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
		})
	}
}

func TestServer_ValidationMessage(t *testing.T) {
	s := newTestServer(t, nil)
	createChild(t, s, "kid-1", nil)

	_, env := do(t, s, http.MethodPost, "/api/v1/children/kid-1/progress",
		map[string]interface{}{"contentType": "letter", "contentId": 1, "activityType": "quiz", "score": 101}, nil)
	require.NotNil(t, env.Error)
	assert.Equal(t, "score must be between 0 and 100", env.Error.Message)
}

func TestServer_DeleteChild(t *testing.T) {
	s := newTestServer(t, nil)
	createChild(t, s, "kid-1", nil)

	rec, _ := do(t, s, http.MethodPost, "/api/v1/children/kid-1/progress", letterQuiz, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(t, s, http.MethodDelete, "/api/v1/children/kid-1", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(t, s, http.MethodGet, "/api/v1/children/kid-1/profile", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	_, env := do(t, s, http.MethodGet, "/api/v1/leaderboard", nil, nil)
	var entries []query.LeaderboardEntryDTO
	require.NoError(t, json.Unmarshal(env.Data, &entries))
	assert.Empty(t, entries)
}

func TestServer_APIKey(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	s := newTestServer(t, nil, string(hash))

	t.Run("missing", func(t *testing.T) {
		rec, env := do(t, s, http.MethodPost, "/api/v1/children", map[string]string{"name": "Budi"}, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "missing_api_key", env.Error.Code)
	})

	t.Run("wrong", func(t *testing.T) {
		rec, env := do(t, s, http.MethodPost, "/api/v1/children", map[string]string{"name": "Budi"},
			http.Header{"X-Api-Key": {"nope"}})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "invalid_api_key", env.Error.Code)
	})

	t.Run("header", func(t *testing.T) {
		createChild(t, s, "kid-1", http.Header{"X-Api-Key": {"s3cret"}})
	})

	t.Run("bearer", func(t *testing.T) {
		rec, _ := do(t, s, http.MethodPost, "/api/v1/children/kid-1/progress", letterQuiz,
			http.Header{"Authorization": {"Bearer s3cret"}})
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("reads are open", func(t *testing.T) {
		rec, _ := do(t, s, http.MethodGet, "/api/v1/children/kid-1/progress", nil, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestServer_Health(t *testing.T) {
	health := handlers.NewHealthChecker("test")
	health.AddCheck("store", func(context.Context) error { return nil })
	s := newTestServer(t, health)

	rec, env := do(t, s, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)

	rec, _ = do(t, s, http.MethodGet, "/ready", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	health.AddOptionalCheck("cache", func(context.Context) error { return errors.New("redis down") })
	rec, _ = do(t, s, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	rec, _ = do(t, s, http.MethodGet, "/ready", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	health.AddCheck("store", func(context.Context) error { return errors.New("connection refused") })
	rec, _ = do(t, s, http.MethodGet, "/ready", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServer_RequestID(t *testing.T) {
	s := newTestServer(t, nil)

	rec, env := do(t, s, http.MethodGet, "/live", nil, http.Header{"X-Request-Id": {"req-42"}})
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "req-42", env.RequestID)

	rec, _ = do(t, s, http.MethodGet, "/live", nil, nil)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestServer_RecoversFromPanic(t *testing.T) {
	s := newTestServer(t, nil)
	h := s.recoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal_server_error")
}
