package domain

import (
	"encoding/json"
	"strconv"
)

// Properties is an arbitrary analytics property bag.
type Properties map[string]any

// Person is a subject record as returned by the person API or attached to an event.
type Person struct {
	DistinctIDs []string   `json:"distinct_ids,omitempty"`
	Properties  Properties `json:"properties"`
}

// ConversionEvent is one record from the event API.
// ActionID is not part of the API response; it is set to the action the event was fetched under.
type ConversionEvent struct {
	ID         string     `json:"id"`
	DistinctID string     `json:"distinct_id"`
	Event      string     `json:"event,omitempty"`
	Properties Properties `json:"properties"`
	Person     *Person    `json:"person,omitempty"`
	Timestamp  string     `json:"timestamp,omitempty"`
	SentAt     string     `json:"sent_at,omitempty"`
	ActionID   int        `json:"-"`
}

// RawTimestamp prefers sent_at over the event timestamp.
func (e *ConversionEvent) RawTimestamp() string {
	if e.SentAt != "" {
		return e.SentAt
	}
	return e.Timestamp
}

// ConversionPayload is the unit sent to the webhook.
type ConversionPayload struct {
	ActionID       int    `json:"action_id"`
	Gclid          string `json:"gclid"`
	ConversionName string `json:"conversion_name"`
	Timestamp      string `json:"timestamp"`
}

// NewPayload builds the webhook payload for an event with a resolved identifier.
func NewPayload(ev *ConversionEvent, gclid string, names map[int]string) ConversionPayload {
	return ConversionPayload{
		ActionID:       ev.ActionID,
		Gclid:          gclid,
		ConversionName: names[ev.ActionID],
		Timestamp:      FormatTimestamp(ev.RawTimestamp()),
	}
}

// String returns the property value under key as a non-empty string.
// Numeric identifiers are rendered in plain decimal form; booleans, objects and arrays are not identifiers.
func (p Properties) String(key string) (string, bool) {
	if p == nil {
		return "", false
	}
	var s string
	switch v := p[key].(type) {
	case string:
		s = v
	case json.Number:
		s = v.String()
	case float64:
		s = strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		s = strconv.Itoa(v)
	case int64:
		s = strconv.FormatInt(v, 10)
	}
	if s == "" {
		return "", false
	}
	return s, true
}

// Nested returns the property bag stored under key, e.g. "$set".
func (p Properties) Nested(key string) Properties {
	if p == nil {
		return nil
	}
	switch v := p[key].(type) {
	case map[string]any:
		return Properties(v)
	case Properties:
		return v
	}
	return nil
}
