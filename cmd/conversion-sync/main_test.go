package main

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"example.com/conversionsync/internal/config"
)

func TestNewLogger(t *testing.T) {
	l := newLogger(config.Config{LogLevel: "debug", LogFormat: "json"})
	assert.Equal(t, logrus.DebugLevel, l.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, l.Formatter)

	l = newLogger(config.Config{LogLevel: "loud"})
	assert.Equal(t, logrus.InfoLevel, l.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, l.Formatter)
}

// setRunOnceEnv points a single run at api and a no-op webhook.
func setRunOnceEnv(t *testing.T, api http.HandlerFunc) {
	t.Helper()
	apiSrv := httptest.NewServer(api)
	t.Cleanup(apiSrv.Close)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	t.Cleanup(hook.Close)

	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("POSTHOG_URL", apiSrv.URL)
	t.Setenv("POSTHOG_API_TOKEN", "api")
	t.Setenv("POSTHOG_PROJECT_TOKEN", "proj")
	t.Setenv("WEBHOOK_URL", hook.URL)
	t.Setenv("ACTION_CATEGORIES", "11036:Sign up - cloud")
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("LOG_LEVEL", "panic")
	t.Setenv("RUN_ONCE", "true")
}

func TestRun_OnceExitCode(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		setRunOnceEnv(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"results":[],"next":null}`)
		})
		assert.Equal(t, 0, run())
	})

	t.Run("upstream error", func(t *testing.T) {
		setRunOnceEnv(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})
		assert.Equal(t, 1, run())
	})

	t.Run("body without results", func(t *testing.T) {
		setRunOnceEnv(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"detail":"Authentication credentials were not provided."}`)
		})
		assert.Equal(t, 1, run())
	})

	t.Run("invalid config", func(t *testing.T) {
		setRunOnceEnv(t, func(w http.ResponseWriter, r *http.Request) {})
		t.Setenv("ACTION_CATEGORIES", "")
		assert.Equal(t, 1, run())
	})
}
