package http

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/storefront-pipeline/internal/config"
	"github.com/storefront-pipeline/internal/domain"
	"github.com/storefront-pipeline/internal/infrastructure/eventbus"
	"github.com/storefront-pipeline/internal/transport/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	names []string
}

func (p *capturePublisher) Publish(_ context.Context, name string, _ any) (eventbus.Event, error) {
	p.names = append(p.names, name)
	return eventbus.Event{ID: "01H", Name: name}, nil
}

func newTestRouter(t *testing.T, pub Publisher) http.Handler {
	t.Helper()
	h, stop := NewRouter(&config.Config{WebhookSecret: "s3cret", AllowedOrigins: []string{"*"}}, &Deps{
		Bus:     pub,
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("# metrics")) }),
	})
	t.Cleanup(stop)
	return h
}

func TestRouter_Ping(t *testing.T) {
	rr := httptest.NewRecorder()
	newTestRouter(t, &capturePublisher{}).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/health-check/ping", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRouter_Metrics(t *testing.T) {
	rr := httptest.NewRecorder()
	newTestRouter(t, &capturePublisher{}).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "# metrics")
}

func TestRouter_EventIngestRoutesSlashedNames(t *testing.T) {
	pub := &capturePublisher{}
	req := httptest.NewRequest(http.MethodPost, "/v1/events/"+domain.EventProductActivated,
		bytes.NewBufferString(`{"product_id":"prod_1"}`))
	req.Header.Set(middleware.WebhookSecretHeader, "s3cret")
	rr := httptest.NewRecorder()

	newTestRouter(t, pub).ServeHTTP(rr, req)

	require.Equal(t, http.StatusAccepted, rr.Code)
	assert.Equal(t, []string{domain.EventProductActivated}, pub.names)
}

func TestRouter_EventIngestRequiresSecret(t *testing.T) {
	pub := &capturePublisher{}
	req := httptest.NewRequest(http.MethodPost, "/v1/events/"+domain.EventProductActivated,
		bytes.NewBufferString(`{"product_id":"prod_1"}`))
	rr := httptest.NewRecorder()

	newTestRouter(t, pub).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Empty(t, pub.names)
}

func TestRouter_AuthenticatedRoutesWithoutVerifier(t *testing.T) {
	rr := httptest.NewRecorder()
	newTestRouter(t, &capturePublisher{}).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/subscriptions", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
