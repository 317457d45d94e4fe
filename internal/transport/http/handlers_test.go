package transporthttp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/conversionsync/internal/config"
	"example.com/conversionsync/internal/syncjob"
)

type fakeStore struct{ err error }

func (f fakeStore) Ready(context.Context) error { return f.err }

type fakeJob struct {
	rep *syncjob.RunReport
}

func (f fakeJob) LastReport() (syncjob.RunReport, bool) {
	if f.rep == nil {
		return syncjob.RunReport{}, false
	}
	return *f.rep, true
}

type fakeScheduler struct{ pending bool }

func (f *fakeScheduler) Trigger() bool {
	if f.pending {
		return false
	}
	f.pending = true
	return true
}

func newDeps(keys ...string) *ServerDeps {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	allowed := map[string]struct{}{}
	for _, k := range keys {
		allowed[k] = struct{}{}
	}
	clock := time.Date(2021, 7, 3, 0, 0, 0, 0, time.UTC)
	return &ServerDeps{
		Cfg:       config.Config{APIKeys: allowed, RateLimitRunsPerMin: 2},
		Store:     fakeStore{},
		Job:       fakeJob{},
		Scheduler: &fakeScheduler{},
		Logger:    logger,
		Now:       func() time.Time { return clock },
	}
}

func do(h http.Handler, method, path, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndReadiness(t *testing.T) {
	d := newDeps()
	h := d.Router()

	rec := do(h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = do(h, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	d.Store = fakeStore{err: errors.New("down")}
	rec = do(d.Router(), http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}

func TestStatus(t *testing.T) {
	d := newDeps("secret")

	rec := do(d.Router(), http.MethodGet, "/status", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(d.Router(), http.MethodGet, "/status", "secret")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	d.Job = fakeJob{rep: &syncjob.RunReport{RunID: "r1", Writes: 3, Advanced: true}}
	rec = do(d.Router(), http.MethodGet, "/status", "secret")
	require.Equal(t, http.StatusOK, rec.Code)

	var got syncjob.RunReport
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, "r1", got.RunID)
	assert.Equal(t, 3, got.Writes)
	assert.True(t, got.Advanced)
}

func TestRun(t *testing.T) {
	d := newDeps()
	h := d.Router()

	rec := do(h, http.MethodGet, "/run", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = do(h, http.MethodPost, "/run", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = do(h, http.MethodPost, "/run", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code, "bucket of 2 is spent by the two requests above")
}

func TestRun_Conflict(t *testing.T) {
	d := newDeps()
	d.Scheduler = &fakeScheduler{pending: true}

	rec := do(d.Router(), http.MethodPost, "/run", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRateLimitRefills(t *testing.T) {
	clock := time.Date(2021, 7, 3, 0, 0, 0, 0, time.UTC)
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	h := RateLimitPerMinute(1, func() time.Time { return clock })(ok)

	assert.Equal(t, http.StatusOK, do(h, http.MethodPost, "/run", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, do(h, http.MethodPost, "/run", "").Code)

	clock = clock.Add(time.Minute)
	assert.Equal(t, http.StatusOK, do(h, http.MethodPost, "/run", "").Code)
}
