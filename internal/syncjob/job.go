// Package syncjob runs the conversion sync: window, fetch, resolve, deliver, advance watermark.
package syncjob

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"example.com/conversionsync/internal/analytics"
	"example.com/conversionsync/internal/config"
	"example.com/conversionsync/internal/delivery"
	"example.com/conversionsync/internal/domain"
	"example.com/conversionsync/internal/resolve"
)

// WatermarkKey is the state key holding the end of the last processed window.
const WatermarkKey = "conversion_sync.last_query_end"

// StateStore persists small string values between runs.
type StateStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// EventSource loads every conversion event of the given actions in a window.
type EventSource interface {
	FetchConversions(ctx context.Context, actions map[int]string, w domain.Window) ([]domain.ConversionEvent, error)
}

// Deliverer sends one payload downstream.
type Deliverer interface {
	Deliver(ctx context.Context, p domain.ConversionPayload) error
}

// Settings are derived once from Config by Setup and never change afterwards.
type Settings struct {
	Actions        map[int]string
	ActionIDs      []int
	DefaultStart   time.Time
	CatchUp        time.Duration
	TrackingKey    string
	DeliveryPolicy string
}

// Deps are the job's collaborators. Nil Events, Lookup and Deliverer are built from Config.
type Deps struct {
	Store     StateStore
	Events    EventSource
	Lookup    resolve.Lookup
	Deliverer Deliverer
	HTTP      *http.Client
	Logger    *logrus.Logger
	Now       func() time.Time
}

type Job struct {
	settings  Settings
	store     StateStore
	events    EventSource
	lookup    resolve.Lookup
	deliverer Deliverer
	logger    *logrus.Logger
	now       func() time.Time

	runMu sync.Mutex

	reportMu sync.RWMutex
	last     *RunReport
}

// Setup validates cfg and wires the job. An error here means the job must not be scheduled.
func Setup(cfg config.Config, deps Deps) (*Job, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("invalid config: state store is required")
	}
	actions, _ := config.ParseActionMap(cfg.ActionCategories)
	start, _ := config.ParseStartDate(cfg.DefaultStartDate)

	ids := make([]int, 0, len(actions))
	for id := range actions {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	if deps.Logger == nil {
		deps.Logger = logrus.StandardLogger()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.HTTP == nil {
		deps.HTTP = &http.Client{Timeout: cfg.HTTPTimeout}
	}
	if deps.Events == nil || deps.Lookup == nil {
		client := analytics.NewClient(cfg.PostHogURL, cfg.APIToken, cfg.ProjectToken, cfg.PageLimit, deps.HTTP, deps.Logger)
		if deps.Events == nil {
			deps.Events = client
		}
		if deps.Lookup == nil {
			deps.Lookup = client
		}
	}
	if deps.Deliverer == nil {
		deps.Deliverer = delivery.NewDispatcher(cfg.WebhookURL, deps.HTTP, deps.Logger)
	}

	return &Job{
		settings: Settings{
			Actions:        actions,
			ActionIDs:      ids,
			DefaultStart:   start,
			CatchUp:        time.Duration(cfg.CatchUpDays) * 24 * time.Hour,
			TrackingKey:    cfg.TrackingKey,
			DeliveryPolicy: cfg.DeliveryPolicy,
		},
		store:     deps.Store,
		events:    deps.Events,
		lookup:    deps.Lookup,
		deliverer: deps.Deliverer,
		logger:    deps.Logger,
		now:       deps.Now,
	}, nil
}

// Settings returns the job's derived settings.
func (j *Job) Settings() Settings { return j.settings }

// Watermark returns the persisted end of the last processed window, or nil before the first run.
func (j *Job) Watermark(ctx context.Context) (*time.Time, error) {
	raw, ok, err := j.store.Get(ctx, WatermarkKey)
	if err != nil {
		return nil, fmt.Errorf("read watermark: %w", err)
	}
	if !ok || raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, fmt.Errorf("parse watermark %q: %w", raw, err)
	}
	return &t, nil
}

// Tick runs one full sync cycle. The watermark only moves when every event in the window
// has been delivered or skipped; on error the next tick retries the same window.
func (j *Job) Tick(ctx context.Context) (RunReport, error) {
	j.runMu.Lock()
	defer j.runMu.Unlock()

	rep := RunReport{RunID: uuid.NewString(), StartedAt: j.now().UTC()}
	err := j.run(ctx, &rep)
	rep.FinishedAt = j.now().UTC()
	if err != nil {
		rep.Error = err.Error()
	}
	j.setLast(rep)

	log := j.logger.WithFields(rep.Fields())
	if err != nil {
		log.WithError(err).Error("[sync] run aborted, watermark not advanced")
		return rep, err
	}
	log.Info("[sync] run complete")
	return rep, nil
}

func (j *Job) run(ctx context.Context, rep *RunReport) error {
	wm, err := j.Watermark(ctx)
	if err != nil {
		return err
	}
	w := domain.ComputeWindow(wm, j.settings.DefaultStart, j.settings.CatchUp, j.now())
	rep.Window = w

	log := j.logger.WithFields(logrus.Fields{
		"run_id":       rep.RunID,
		"window_start": w.Start.Format(time.RFC3339),
		"window_end":   w.End.Format(time.RFC3339),
	})
	log.Info("[sync] querying window")

	events, err := j.events.FetchConversions(ctx, j.settings.Actions, w)
	if err != nil {
		return fmt.Errorf("fetch events: %w", err)
	}
	rep.Fetched = len(events)
	log.Infof("[sync] loaded %d conversion events", len(events))

	resolver := resolve.New(j.settings.TrackingKey, j.lookup, j.logger)
	defer func() { rep.Lookups = resolver.Lookups() }()

	for i := range events {
		ev := &events[i]
		gclid, src, err := resolver.Resolve(ctx, ev)
		if err != nil {
			return fmt.Errorf("resolve identifier: %w", err)
		}
		if gclid == "" {
			rep.Skipped++
			rep.Processed++
			continue
		}

		payload := domain.NewPayload(ev, gclid, j.settings.Actions)
		if err := j.deliverer.Deliver(ctx, payload); err != nil {
			rep.DeliveryFailures++
			if j.settings.DeliveryPolicy == config.PolicyAbort {
				return fmt.Errorf("deliver event %s: %w", ev.ID, err)
			}
			log.WithError(err).WithField("event_id", ev.ID).Warn("[sync] delivery failed, continuing")
		} else {
			rep.Writes++
		}
		rep.Processed++
		log.WithFields(logrus.Fields{"source": string(src)}).
			Debugf("[sync] processed %d / %d events, writes: %d", rep.Processed, len(events), rep.Writes)
	}

	if err := j.store.Set(ctx, WatermarkKey, w.End.UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("write watermark: %w", err)
	}
	rep.Advanced = true
	return nil
}

// LastReport returns the report of the most recent tick.
func (j *Job) LastReport() (RunReport, bool) {
	j.reportMu.RLock()
	defer j.reportMu.RUnlock()
	if j.last == nil {
		return RunReport{}, false
	}
	return *j.last, true
}

func (j *Job) setLast(r RunReport) {
	j.reportMu.Lock()
	defer j.reportMu.Unlock()
	j.last = &r
}
