// Package delivery posts conversion payloads to the downstream webhook.
package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"example.com/conversionsync/internal/domain"
	"example.com/conversionsync/internal/idempotency"
)

var (
	// ErrRejected is returned when the webhook answers with a non-2xx status.
	ErrRejected = errors.New("webhook rejected delivery")
	// ErrInvalidPayload is returned without sending anything.
	ErrInvalidPayload = errors.New("invalid payload")
)

type Dispatcher struct {
	url    string
	client *http.Client
	logger *logrus.Logger
}

func NewDispatcher(url string, client *http.Client, logger *logrus.Logger) *Dispatcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &Dispatcher{url: url, client: client, logger: logger}
}

// Deliver POSTs p as JSON. The webhook has no response contract beyond the status code.
func (d *Dispatcher) Deliver(ctx context.Context, p domain.ConversionPayload) error {
	if errs := domain.ValidatePayload(&p); len(errs) > 0 {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, errs)
	}
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	key := idempotency.DeliveryKey(&p)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Delivery-Key", key)

	res, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, res.Body)

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return fmt.Errorf("%w: status %d", ErrRejected, res.StatusCode)
	}
	d.logger.WithFields(logrus.Fields{
		"delivery_key":    key,
		"action_id":       p.ActionID,
		"conversion_name": p.ConversionName,
		"timestamp":       p.Timestamp,
	}).Info("[delivery] conversion sent")
	return nil
}
