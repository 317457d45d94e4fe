package delivery

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/conversionsync/internal/domain"
	"example.com/conversionsync/internal/idempotency"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

var payload = domain.ConversionPayload{
	ActionID:       11036,
	Gclid:          "g-1",
	ConversionName: "Sign up - cloud",
	Timestamp:      "2021-07-01T10:00:00.000+0000",
}

func TestDeliver_PostsJSON(t *testing.T) {
	var (
		got    map[string]any
		header http.Header
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		header = r.Header.Clone()
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewDispatcher(srv.URL, srv.Client(), quietLogger())
	require.NoError(t, d.Deliver(context.Background(), payload))

	assert.Equal(t, map[string]any{
		"action_id":       float64(11036),
		"gclid":           "g-1",
		"conversion_name": "Sign up - cloud",
		"timestamp":       "2021-07-01T10:00:00.000+0000",
	}, got)
	assert.Equal(t, "application/json", header.Get("Content-Type"))
	assert.Equal(t, idempotency.DeliveryKey(&payload), header.Get("X-Delivery-Key"))
}

func TestDeliver_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := NewDispatcher(srv.URL, srv.Client(), quietLogger()).Deliver(context.Background(), payload)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRejected)
	assert.Contains(t, err.Error(), "500")
}

func TestDeliver_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := NewDispatcher(url, nil, quietLogger()).Deliver(context.Background(), payload)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrRejected)
}

func TestDeliver_InvalidPayloadIsNotSent(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { calls++ }))
	defer srv.Close()

	bad := payload
	bad.ConversionName = ""
	err := NewDispatcher(srv.URL, srv.Client(), quietLogger()).Deliver(context.Background(), bad)
	assert.ErrorIs(t, err, ErrInvalidPayload)
	assert.Zero(t, calls)
}
