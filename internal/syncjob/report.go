package syncjob

import (
	"time"

	"github.com/sirupsen/logrus"

	"example.com/conversionsync/internal/domain"
)

// RunReport summarises one tick.
type RunReport struct {
	RunID            string        `json:"run_id"`
	Window           domain.Window `json:"window"`
	Fetched          int           `json:"fetched"`
	Processed        int           `json:"processed"`
	Writes           int           `json:"writes"`
	Skipped          int           `json:"skipped"`
	Lookups          int           `json:"lookups"`
	DeliveryFailures int           `json:"delivery_failures"`
	Advanced         bool          `json:"watermark_advanced"`
	StartedAt        time.Time     `json:"started_at"`
	FinishedAt       time.Time     `json:"finished_at"`
	Error            string        `json:"error,omitempty"`
}

func (r RunReport) Fields() logrus.Fields {
	return logrus.Fields{
		"run_id":            r.RunID,
		"window_start":      r.Window.Start.Format(time.RFC3339),
		"window_end":        r.Window.End.Format(time.RFC3339),
		"fetched":           r.Fetched,
		"processed":         r.Processed,
		"writes":            r.Writes,
		"skipped":           r.Skipped,
		"lookups":           r.Lookups,
		"delivery_failures": r.DeliveryFailures,
		"duration":          r.FinishedAt.Sub(r.StartedAt).String(),
	}
}
