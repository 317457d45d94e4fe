package transporthttp

import (
	"context"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"example.com/conversionsync/internal/config"
	"example.com/conversionsync/internal/syncjob"
)

// Readier reports whether the watermark store is reachable.
type Readier interface {
	Ready(ctx context.Context) error
}

// Reporter exposes the last run.
type Reporter interface {
	LastReport() (syncjob.RunReport, bool)
}

// Triggerer queues a manual run.
type Triggerer interface {
	Trigger() bool
}

type ServerDeps struct {
	Cfg       config.Config
	Store     Readier
	Job       Reporter
	Scheduler Triggerer
	Logger    *logrus.Logger
	Now       func() time.Time
}

// --- Health ---

func (d *ServerDeps) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (d *ServerDeps) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	if err := d.Store.Ready(r.Context()); err != nil {
		d.Logger.WithError(err).Warn("[api] readiness check failed")
		WriteProblem(w, http.StatusServiceUnavailable, "not ready", "state store not reachable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// --- Runs ---

func (d *ServerDeps) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	rep, ok := d.Job.LastReport()
	if !ok {
		WriteProblem(w, http.StatusNotFound, "no runs yet", "the sync job has not completed a tick")
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (d *ServerDeps) HandleRun(w http.ResponseWriter, r *http.Request) {
	defer DrainBody(r)
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !d.Scheduler.Trigger() {
		WriteProblem(w, http.StatusConflict, "run pending", "a run is already queued")
		return
	}
	d.Logger.Info("[api] manual run queued")
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

// --- Router ---

func (d *ServerDeps) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", d.HandleHealthz)
	mux.HandleFunc("/readyz", d.HandleReadyz)

	var status http.Handler = http.HandlerFunc(d.HandleStatus)
	status = APIKeyAuth(d.Cfg.APIKeys)(status)
	mux.Handle("/status", status)

	var run http.Handler = http.HandlerFunc(d.HandleRun)
	run = RateLimitPerMinute(d.Cfg.RateLimitRunsPerMin, d.Now)(run)
	run = APIKeyAuth(d.Cfg.APIKeys)(run)
	mux.Handle("/run", run)

	return mux
}
