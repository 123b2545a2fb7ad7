package syncq

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/virtual-shiksha/shiksha/internal/models"
	"github.com/virtual-shiksha/shiksha/pkg/version"
)

// DefaultSyncTypes are the sync types delivered by the built-in HTTP handler.
var DefaultSyncTypes = []models.SyncType{
	models.SyncTypeQuiz,
	models.SyncTypeAssignment,
	models.SyncTypeForum,
}

// Handler delivers one entry to the server. A nil error means delivered.
type Handler interface {
	Deliver(ctx context.Context, entry models.SyncEntry) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, entry models.SyncEntry) error

// Deliver calls f.
func (f HandlerFunc) Deliver(ctx context.Context, entry models.SyncEntry) error {
	return f(ctx, entry)
}

// HTTPHandler POSTs the payload as JSON to <BaseURL>/sync/<syncType>.
// Every attempt carries the entry's delivery key so the server can drop
// duplicates of an at-least-once delivery.
type HTTPHandler struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPHandler creates a handler. Pass a client whose transport is the
// cache router so deliveries go through the same interception layer as
// every other fetch.
func NewHTTPHandler(baseURL string, client *http.Client) *HTTPHandler {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPHandler{BaseURL: strings.TrimRight(baseURL, "/"), Client: client}
}

// Endpoint returns the delivery URL for a sync type.
func (h *HTTPHandler) Endpoint(syncType models.SyncType) string {
	return h.BaseURL + "/sync/" + url.PathEscape(string(syncType))
}

// Deliver implements Handler.
func (h *HTTPHandler) Deliver(ctx context.Context, entry models.SyncEntry) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.Endpoint(entry.SyncType), bytes.NewReader(entry.Payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Idempotency-Key", entry.DeliveryKey)
	req.Header.Set("X-Sync-Attempt", strconv.Itoa(entry.Attempts))
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := h.Client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", entry.SyncType, err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("post %s: server returned %s", entry.SyncType, resp.Status)
	}
	return nil
}
