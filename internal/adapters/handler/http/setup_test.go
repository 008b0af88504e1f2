package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	adapterHTTP "github.com/comitanigiacomo/kanso-care-engine/internal/adapters/handler/http"
	"github.com/comitanigiacomo/kanso-care-engine/internal/adapters/handler/http/middleware"
	"github.com/comitanigiacomo/kanso-care-engine/internal/adapters/repository"
	"github.com/comitanigiacomo/kanso-care-engine/internal/core/domain"
	"github.com/comitanigiacomo/kanso-care-engine/internal/core/services"
)

type testEnv struct {
	router *gin.Engine
	clock  *domain.FixedClock
	store  *repository.InMemoryStore
	tasks  *services.TaskService
}

// setupRouter mounts every protected handler behind a stand-in for the auth
// middleware that trusts the X-User-ID header.
func setupRouter(today string) *testEnv {
	gin.SetMode(gin.TestMode)

	clock := &domain.FixedClock{Day: domain.MustParseDate(today)}
	store := repository.NewInMemoryStore()

	reminderSvc := services.NewReminderService(store.Reminders(), clock, domain.DefaultCarePolicy(), nil)
	taskSvc := services.NewTaskService(store.Reminders(), store.TaskHistory(), clock, nil, nil)
	calendarSvc := services.NewCalendarService(store.Reminders(), store.TaskHistory(), clock)
	statsSvc := services.NewStatsService(store.TaskHistory())

	r := gin.New()
	r.Use(func(c *gin.Context) {
		if userID := c.GetHeader("X-User-ID"); userID != "" {
			c.Set(middleware.ContextUserIDKey, userID)
		}
		c.Next()
	})

	api := r.Group("/api/v1")
	adapterHTTP.NewReminderHandler(reminderSvc).RegisterRoutes(api)
	adapterHTTP.NewTaskHandler(taskSvc, clock).RegisterRoutes(api)
	adapterHTTP.NewCalendarHandler(calendarSvc).RegisterRoutes(api)
	adapterHTTP.NewStatsHandler(statsSvc, clock).RegisterRoutes(api)

	return &testEnv{router: r, clock: clock, store: store, tasks: taskSvc}
}

func (e *testEnv) do(t *testing.T, method, path, userID string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// materialize runs the daily job for the clock's current day.
func (e *testEnv) materialize(t *testing.T) *services.MaterializationResult {
	t.Helper()
	res, err := e.tasks.MaterializeDueOccurrences(context.Background(), e.clock.Today())
	require.NoError(t, err)
	return res
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}
