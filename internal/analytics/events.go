package analytics

import (
	"context"
	"fmt"
	"iter"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"example.com/conversionsync/internal/domain"
)

// EventPage is one page of the event API.
type EventPage struct {
	Results []domain.ConversionEvent `json:"results"`
	Next    *string                  `json:"next"`
}

// eventPageBody is the wire shape; a missing or null results array is an error, not an empty page.
type eventPageBody struct {
	Results *[]domain.ConversionEvent `json:"results"`
	Next    *string                   `json:"next"`
}

func (c *Client) eventsURL(actionID int, w domain.Window) string {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(c.pageLimit))
	q.Set("token", c.projectToken)
	q.Set("action_id", strconv.Itoa(actionID))
	q.Set("after", w.Start.UTC().Format(time.RFC3339Nano))
	q.Set("before", w.End.UTC().Format(time.RFC3339Nano))
	return c.baseURL + "/api/event/?" + q.Encode()
}

// EventPages yields the pages of one action's events in w, following next cursors.
// Every range over the sequence starts again from the first page. Iteration stops after the first error.
func (c *Client) EventPages(ctx context.Context, actionID int, w domain.Window) iter.Seq2[EventPage, error] {
	return func(yield func(EventPage, error) bool) {
		next := c.eventsURL(actionID, w)
		for next != "" {
			var body eventPageBody
			if err := c.getJSON(ctx, next, &body); err != nil {
				yield(EventPage{}, fmt.Errorf("action %d: %w", actionID, err))
				return
			}
			if body.Results == nil {
				yield(EventPage{}, fmt.Errorf("action %d: GET %s: %w: no results array", actionID, redact(next), ErrMalformedResponse))
				return
			}
			page := EventPage{Results: *body.Results, Next: body.Next}
			for i := range page.Results {
				page.Results[i].ActionID = actionID
			}
			if !yield(page, nil) {
				return
			}
			next = ""
			if page.Next != nil {
				next = *page.Next
			}
		}
	}
}

// FetchConversions loads every event of every action in w, ascending by action id.
func (c *Client) FetchConversions(ctx context.Context, actions map[int]string, w domain.Window) ([]domain.ConversionEvent, error) {
	if w.Empty() {
		return nil, nil
	}
	ids := make([]int, 0, len(actions))
	for id := range actions {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	var out []domain.ConversionEvent
	for _, id := range ids {
		pages := 0
		for page, err := range c.EventPages(ctx, id, w) {
			if err != nil {
				return nil, err
			}
			pages++
			out = append(out, page.Results...)
			c.logger.WithFields(logrus.Fields{
				"action_id": id,
				"page":      pages,
				"results":   len(page.Results),
				"has_next":  page.Next != nil && *page.Next != "",
			}).Debug("[analytics] loaded event page")
		}
	}
	return out, nil
}
