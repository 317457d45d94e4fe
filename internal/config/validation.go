package config

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Delivery failure policies.
const (
	PolicyWarn  = "warn"
	PolicyAbort = "abort"
)

// FieldError represents a single setting's validation error.
type FieldError struct {
	Field string `json:"field"`
	Msg   string `json:"message"`
}

func (e FieldError) Error() string { return fmt.Sprintf("%s: %s", e.Field, e.Msg) }

// Validate checks every required setting and reports all problems at once.
func (c Config) Validate() error {
	var errs []error

	requireURL := func(field, raw string) {
		if raw == "" {
			errs = append(errs, FieldError{field, "required"})
			return
		}
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, FieldError{field, "must be an absolute URL"})
		}
	}
	requireURL("POSTHOG_URL", c.PostHogURL)
	requireURL("WEBHOOK_URL", c.WebhookURL)

	if c.APIToken == "" {
		errs = append(errs, FieldError{"POSTHOG_API_TOKEN", "required"})
	}
	if c.ProjectToken == "" {
		errs = append(errs, FieldError{"POSTHOG_PROJECT_TOKEN", "required"})
	}

	if _, err := ParseActionMap(c.ActionCategories); err != nil {
		errs = append(errs, FieldError{"ACTION_CATEGORIES", err.Error()})
	}
	if _, err := ParseStartDate(c.DefaultStartDate); err != nil {
		errs = append(errs, FieldError{"DEFAULT_START_DATE", err.Error()})
	}

	if c.CatchUpDays <= 0 {
		errs = append(errs, FieldError{"CATCHUP_DAYS", "must be positive"})
	}
	if c.PageLimit <= 0 {
		errs = append(errs, FieldError{"PAGE_LIMIT", "must be positive"})
	}
	if strings.TrimSpace(c.TrackingKey) == "" {
		errs = append(errs, FieldError{"TRACKING_KEY", "required"})
	}
	if c.DeliveryPolicy != PolicyWarn && c.DeliveryPolicy != PolicyAbort {
		errs = append(errs, FieldError{"DELIVERY_FAILURE_POLICY", fmt.Sprintf("must be %q or %q", PolicyWarn, PolicyAbort)})
	}
	if c.TickInterval <= 0 {
		errs = append(errs, FieldError{"TICK_INTERVAL_SECONDS", "must be positive"})
	}
	return errors.Join(errs...)
}

// ParseActionMap parses comma separated "id:name" pairs, e.g. "11036:Sign up - cloud,11037:Sign up - self-hosted".
func ParseActionMap(csv string) (map[int]string, error) {
	csv = strings.TrimSpace(csv)
	if csv == "" {
		return nil, errors.New("required")
	}
	m := make(map[int]string)
	for _, pair := range strings.Split(csv, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		idStr, name, ok := strings.Cut(pair, ":")
		if !ok {
			return nil, fmt.Errorf("entry %q: expected id:name", pair)
		}
		id, err := strconv.Atoi(strings.TrimSpace(idStr))
		if err != nil {
			return nil, fmt.Errorf("entry %q: id must be an integer", pair)
		}
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("entry %q: name is empty", pair)
		}
		if _, dup := m[id]; dup {
			return nil, fmt.Errorf("entry %q: duplicate id %d", pair, id)
		}
		m[id] = name
	}
	if len(m) == 0 {
		return nil, errors.New("required")
	}
	return m, nil
}

// ParseStartDate accepts a plain date (UTC midnight) or an RFC 3339 timestamp.
func ParseStartDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("%q is not a date (YYYY-MM-DD) or RFC 3339 timestamp", s)
}
