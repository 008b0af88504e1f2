package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	adapterHTTP "github.com/comitanigiacomo/kanso-care-engine/internal/adapters/handler/http"
	"github.com/comitanigiacomo/kanso-care-engine/internal/adapters/repository"
	"github.com/comitanigiacomo/kanso-care-engine/internal/config"
	"github.com/comitanigiacomo/kanso-care-engine/internal/core/domain"
	"github.com/comitanigiacomo/kanso-care-engine/internal/core/services"
	"github.com/comitanigiacomo/kanso-care-engine/internal/core/workers"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	dsn := config.DatabaseConfig{
		User:     getenv("DB_USER", "kanso_user"),
		Password: getenv("DB_PASSWORD", "secret"),
		Host:     getenv("DB_HOST", "localhost"),
		Port:     getenv("DB_PORT", "5432"),
		Name:     getenv("DB_NAME", "kanso_db"),
		SSLMode:  "disable",
	}.DSN()

	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		t.Skipf("Skipping end-to-end test: database unreachable: %v", err)
	}

	ctx := context.Background()
	require.NoError(t, repository.Migrate(ctx, db))
	_, err = db.ExecContext(ctx, "TRUNCATE TABLE task_history, reminders, users")
	require.NoError(t, err)

	return db
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

type e2e struct {
	router *gin.Engine
	token  string
}

func (e *e2e) call(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if e.token != "" {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestEndToEnd_CareLifecycle(t *testing.T) {
	gin.SetMode(gin.TestMode)

	db := setupTestDB(t)
	defer db.Close()

	clock := &domain.FixedClock{Day: domain.MustParseDate("2024-03-01")}
	users := repository.NewPostgresUserRepository(db)
	reminders := repository.NewPostgresReminderRepository(db)
	history := repository.NewPostgresTaskHistoryRepository(db)

	tokens := services.NewTokenService("e2e-secret-at-least-16", "kanso-test", time.Hour, users)
	taskSvc := services.NewTaskService(reminders, history, clock, nil, nil)
	worker := workers.NewMaterializeWorker(taskSvc, nil, clock, nil, nil, workers.MaterializeWorkerConfig{})

	env := &e2e{router: adapterHTTP.NewRouter(adapterHTTP.RouterDependencies{
		AuthHandler:     adapterHTTP.NewAuthHandler(services.NewAuthService(users, tokens)),
		ReminderHandler: adapterHTTP.NewReminderHandler(services.NewReminderService(reminders, clock, domain.DefaultCarePolicy(), nil)),
		TaskHandler:     adapterHTTP.NewTaskHandler(taskSvc, clock),
		CalendarHandler: adapterHTTP.NewCalendarHandler(services.NewCalendarService(reminders, history, clock)),
		StatsHandler:    adapterHTTP.NewStatsHandler(services.NewStatsService(history), clock),
		TokenValidator:  tokens,
		DB:              db,
		StartTime:       time.Now(),
	})}

	var ruleID, occurrenceID string

	t.Run("1. Register and Login", func(t *testing.T) {
		creds := map[string]string{"email": "fern@kanso.care", "password": "monstera-deliciosa"}

		w := env.call(t, http.MethodPost, "/api/v1/auth/register", creds)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		w = env.call(t, http.MethodPost, "/api/v1/auth/login", creds)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var resp struct {
			Token string `json:"token"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.NotEmpty(t, resp.Token)
		env.token = resp.Token
	})

	t.Run("2. Seed Plant", func(t *testing.T) {
		w := env.call(t, http.MethodPost, "/api/v1/plants/monstera/reminders", map[string]interface{}{
			"care_types": []string{"watering"},
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var rules []domain.ReminderRule
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rules))
		require.Len(t, rules, 1)
		assert.Equal(t, "2024-03-01", rules[0].NextDueDate.String())
		ruleID = rules[0].ID
	})

	t.Run("3. Daily Run Is Idempotent", func(t *testing.T) {
		first, err := worker.RunOnce(context.Background(), clock.Today())
		require.NoError(t, err)
		assert.Len(t, first.Created, 1)

		second, err := worker.RunOnce(context.Background(), clock.Today())
		require.NoError(t, err)
		assert.Empty(t, second.Created)
		assert.Equal(t, 1, second.Skipped)

		w := env.call(t, http.MethodGet, "/api/v1/tasks", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var tasks []domain.TaskOccurrence
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tasks))
		require.Len(t, tasks, 1)
		occurrenceID = tasks[0].ID
	})

	t.Run("4. Complete Advances Rule", func(t *testing.T) {
		w := env.call(t, http.MethodPost, "/api/v1/tasks/"+occurrenceID+"/complete", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		w = env.call(t, http.MethodGet, "/api/v1/reminders/"+ruleID, nil)
		require.Equal(t, http.StatusOK, w.Code)
		var rule domain.ReminderRule
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rule))
		assert.Equal(t, "2024-03-08", rule.NextDueDate.String())
	})

	t.Run("5. Calendar Shows History And Next Due", func(t *testing.T) {
		w := env.call(t, http.MethodGet, "/api/v1/calendar?month=2024-03", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var cal domain.CalendarMonth
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cal))
		counts := map[string][2]int{}
		for _, d := range cal.Days {
			counts[d.Date.String()] = [2]int{d.CompletedCount, d.FutureCount}
		}
		assert.Equal(t, [2]int{1, 0}, counts["2024-03-01"])
		assert.Equal(t, [2]int{0, 1}, counts["2024-03-08"])
	})

	t.Run("6. Delete Rule Keeps History", func(t *testing.T) {
		w := env.call(t, http.MethodDelete, "/api/v1/reminders/"+ruleID, nil)
		require.Equal(t, http.StatusNoContent, w.Code)

		w = env.call(t, http.MethodGet, "/api/v1/tasks?from=2024-03-01&to=2024-03-01", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var tasks []domain.TaskOccurrence
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tasks))
		require.Len(t, tasks, 1)
		assert.True(t, tasks[0].IsCompleted)
	})

	t.Run("7. Auth Error", func(t *testing.T) {
		anon := &e2e{router: env.router}
		w := anon.call(t, http.MethodGet, "/api/v1/reminders", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("8. Health", func(t *testing.T) {
		w := env.call(t, http.MethodGet, "/health", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"database":"connected"`)
	})
}
