// Package resolve finds the ad-click identifier for a conversion event.
package resolve

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"example.com/conversionsync/internal/domain"
)

// Source says where an identifier was found.
type Source string

const (
	SourceNone          Source = ""
	SourceEvent         Source = "event"
	SourcePersonOnEvent Source = "event_person"
	SourcePendingSet    Source = "event_set"
	SourcePendingOnce   Source = "event_set_once"
	SourceCache         Source = "cache"
	SourceLookup        Source = "person_lookup"
)

// Lookup fetches person records by distinct id.
type Lookup interface {
	LookupPersons(ctx context.Context, distinctID string) ([]domain.Person, error)
}

// Extractor pulls an identifier out of an event without any I/O.
type Extractor struct {
	Source  Source
	Extract func(ev *domain.ConversionEvent) (string, bool)
}

// Resolver is scoped to a single run: its cache and queried set are never persisted.
// It is not safe for concurrent use.
type Resolver struct {
	keys       []string
	extractors []Extractor
	lookup     Lookup
	logger     *logrus.Logger

	cache   map[string]string
	queried map[string]struct{}
	lookups int
}

// KeyVariants returns the property names that may carry the identifier, in priority order.
func KeyVariants(key string) []string {
	return []string{key, "$initial_" + key}
}

func New(trackingKey string, lookup Lookup, logger *logrus.Logger) *Resolver {
	keys := KeyVariants(trackingKey)
	return &Resolver{
		keys:       keys,
		extractors: DefaultExtractors(keys),
		lookup:     lookup,
		logger:     logger,
		cache:      make(map[string]string),
		queried:    make(map[string]struct{}),
	}
}

// DefaultExtractors checks event properties, the attached person snapshot, then pending $set and $set_once blocks.
func DefaultExtractors(keys []string) []Extractor {
	return []Extractor{
		{SourceEvent, func(ev *domain.ConversionEvent) (string, bool) {
			return firstOf(ev.Properties, keys)
		}},
		{SourcePersonOnEvent, func(ev *domain.ConversionEvent) (string, bool) {
			if ev.Person == nil {
				return "", false
			}
			return firstOf(ev.Person.Properties, keys)
		}},
		{SourcePendingSet, func(ev *domain.ConversionEvent) (string, bool) {
			return firstOf(ev.Properties.Nested("$set"), keys)
		}},
		{SourcePendingOnce, func(ev *domain.ConversionEvent) (string, bool) {
			return firstOf(ev.Properties.Nested("$set_once"), keys)
		}},
	}
}

func firstOf(p domain.Properties, keys []string) (string, bool) {
	for _, k := range keys {
		if v, ok := p.String(k); ok {
			return v, true
		}
	}
	return "", false
}

// Resolve returns the identifier for ev, or SourceNone if there is none.
// A subject is looked up at most once per run, hit or miss. Lookup errors are returned as-is.
func (r *Resolver) Resolve(ctx context.Context, ev *domain.ConversionEvent) (string, Source, error) {
	for _, ex := range r.extractors {
		if id, ok := ex.Extract(ev); ok {
			r.remember(ev.DistinctID, id)
			return id, ex.Source, nil
		}
	}

	if id, ok := r.cache[ev.DistinctID]; ok {
		return id, SourceCache, nil
	}

	if ev.DistinctID == "" || r.lookup == nil {
		return "", SourceNone, nil
	}
	if _, done := r.queried[ev.DistinctID]; done {
		return "", SourceNone, nil
	}

	persons, err := r.lookup.LookupPersons(ctx, ev.DistinctID)
	r.queried[ev.DistinctID] = struct{}{}
	r.lookups++
	if err != nil {
		return "", SourceNone, fmt.Errorf("lookup person %q: %w", ev.DistinctID, err)
	}

	for _, p := range persons {
		if id, ok := firstOf(p.Properties, r.keys); ok {
			r.remember(ev.DistinctID, id)
			return id, SourceLookup, nil
		}
	}
	r.logger.WithField("distinct_id", ev.DistinctID).Debug("[resolve] no identifier on person")
	return "", SourceNone, nil
}

func (r *Resolver) remember(distinctID, id string) {
	if distinctID != "" {
		r.cache[distinctID] = id
	}
}

// Lookups returns how many person lookups this resolver issued.
func (r *Resolver) Lookups() int { return r.lookups }
