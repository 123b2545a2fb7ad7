// Package syncq buffers locally originated writes and delivers them to the
// server once the origin is reachable, with bounded retry.
package syncq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/virtual-shiksha/shiksha/internal/connectivity"
	"github.com/virtual-shiksha/shiksha/internal/log"
	"github.com/virtual-shiksha/shiksha/internal/models"
	"github.com/virtual-shiksha/shiksha/internal/otel"
	"github.com/virtual-shiksha/shiksha/internal/telemetry"
)

// DefaultMaxAttempts is the attempt ceiling after which an entry is abandoned.
const DefaultMaxAttempts = 5

var (
	// ErrDeliveryFailure wraps every failed delivery attempt.
	ErrDeliveryFailure = errors.New("sync delivery failed")
	// ErrNoHandler means no handler is registered for an entry's sync type.
	ErrNoHandler = errors.New("no handler for sync type")
)

// Skip reasons reported in Result.
const (
	SkipOffline    = "offline"
	SkipInProgress = "drain in progress"
)

// Store is the persistence the queue needs. *db.DB satisfies it.
type Store interface {
	InsertSyncEntry(ctx context.Context, entry *models.SyncEntry) error
	ListSyncEntries(ctx context.Context) ([]models.SyncEntry, error)
	ListSyncEntriesByType(ctx context.Context, syncType models.SyncType) ([]models.SyncEntry, error)
	CountSyncEntries(ctx context.Context) (int64, error)
	IncrementSyncAttempts(ctx context.Context, id uint) (int, error)
	SetSyncError(ctx context.Context, id uint, msg string) error
	DeleteSyncEntry(ctx context.Context, id uint) error
}

// Options configures a Queue. Zero values fall back to defaults.
type Options struct {
	MaxAttempts     int
	DeliveryTimeout time.Duration
	// Connectivity gates Drain. Nil means always online.
	Connectivity connectivity.Source
	Telemetry    telemetry.Client
	// Now stamps enqueued entries.
	Now func() time.Time
}

// Result summarises one Drain pass.
type Result struct {
	Skipped    bool
	SkipReason string
	Delivered  int
	Failed     int
	Abandoned  int
	Remaining  int
	Duration   time.Duration
}

// Queue is the deferred-write queue.
type Queue struct {
	store    Store
	opts     Options
	tracer   trace.Tracer
	draining sync.Mutex

	mu       sync.RWMutex
	handlers map[models.SyncType]Handler
}

// New creates a queue over store.
func New(store Store, opts Options) *Queue {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.DeliveryTimeout <= 0 {
		opts.DeliveryTimeout = 30 * time.Second
	}
	if opts.Telemetry == nil {
		opts.Telemetry = telemetry.Noop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Queue{
		store:    store,
		opts:     opts,
		tracer:   otel.Tracer("internal/syncq"),
		handlers: make(map[models.SyncType]Handler),
	}
}

// Register installs the delivery handler for a sync type, replacing any
// previous one.
func (q *Queue) Register(syncType models.SyncType, h Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[syncType] = h
}

// RegisterAll installs h for every given sync type.
func (q *Queue) RegisterAll(h Handler, types ...models.SyncType) {
	for _, t := range types {
		q.Register(t, h)
	}
}

func (q *Queue) handler(syncType models.SyncType) (Handler, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	h, ok := q.handlers[syncType]
	return h, ok
}

// Enqueue stores a pending entry and returns its ID. It never touches the
// network. payload may be any JSON-marshallable value; raw JSON is stored
// as is.
func (q *Queue) Enqueue(ctx context.Context, syncType models.SyncType, payload any) (uint, error) {
	if strings.TrimSpace(string(syncType)) == "" {
		return 0, fmt.Errorf("enqueue: sync type is required")
	}
	data, err := encodePayload(payload)
	if err != nil {
		return 0, fmt.Errorf("enqueue %s: %w", syncType, err)
	}

	entry := &models.SyncEntry{
		SyncType:    syncType,
		Payload:     data,
		EnqueuedAt:  q.opts.Now().UTC(),
		DeliveryKey: uuid.NewString(),
	}
	if err := q.store.InsertSyncEntry(ctx, entry); err != nil {
		return 0, fmt.Errorf("enqueue %s: %w", syncType, err)
	}
	log.Debugf("queued %s entry %d", syncType, entry.ID)
	return entry.ID, nil
}

func encodePayload(payload any) (models.JSON, error) {
	var raw []byte
	switch v := payload.(type) {
	case nil:
		return models.JSON("null"), nil
	case json.RawMessage:
		raw = v
	case models.JSON:
		raw = v
	case []byte:
		raw = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
		return b, nil
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("payload is not valid JSON")
	}
	return models.JSON(raw), nil
}

// Pending lists queued entries, oldest first.
func (q *Queue) Pending(ctx context.Context) ([]models.SyncEntry, error) {
	return q.store.ListSyncEntries(ctx)
}

// PendingOfType lists the queued entries of one sync type, oldest first.
func (q *Queue) PendingOfType(ctx context.Context, syncType models.SyncType) ([]models.SyncEntry, error) {
	return q.store.ListSyncEntriesByType(ctx, syncType)
}

// Len returns the number of queued entries.
func (q *Queue) Len(ctx context.Context) (int, error) {
	n, err := q.store.CountSyncEntries(ctx)
	return int(n), err
}

// Drain delivers every pending entry, oldest first. It does nothing when
// offline or when another drain is running. Handler failures are absorbed
// per entry; only store failures are returned.
func (q *Queue) Drain(ctx context.Context) (Result, error) {
	if q.opts.Connectivity != nil && !q.opts.Connectivity.Online() {
		log.Debugf("sync queue: offline, not draining")
		return Result{Skipped: true, SkipReason: SkipOffline}, nil
	}
	if !q.draining.TryLock() {
		log.Debugf("sync queue: drain already in progress")
		return Result{Skipped: true, SkipReason: SkipInProgress}, nil
	}
	defer q.draining.Unlock()

	ctx, span := q.tracer.Start(ctx, "syncq.Drain")
	defer span.End()

	start := time.Now()
	entries, err := q.store.ListSyncEntries(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load queue")
		return Result{}, fmt.Errorf("load sync queue: %w", err)
	}
	if len(entries) == 0 {
		return Result{}, nil
	}
	log.Infof("processing %d items in sync queue", len(entries))

	var (
		res  Result
		errs []error
	)
	for i, entry := range entries {
		if ctx.Err() != nil {
			res.Remaining += len(entries) - i
			errs = append(errs, ctx.Err())
			break
		}
		out, err := q.process(ctx, entry)
		if err != nil {
			errs = append(errs, err)
		}
		switch out {
		case outcomeDelivered:
			res.Delivered++
		case outcomeAbandoned:
			res.Abandoned++
		default:
			res.Failed++
			res.Remaining++
		}
	}
	res.Duration = time.Since(start)

	span.SetAttributes(
		attribute.Int("syncq.delivered", res.Delivered),
		attribute.Int("syncq.failed", res.Failed),
		attribute.Int("syncq.abandoned", res.Abandoned),
	)
	q.opts.Telemetry.TrackSyncDrained(res.Delivered, res.Failed, res.Abandoned, res.Remaining, res.Duration.Milliseconds())

	if err := errors.Join(errs...); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store failure during drain")
		return res, err
	}
	return res, nil
}

type outcome int

const (
	outcomeFailed outcome = iota
	outcomeDelivered
	outcomeAbandoned
)

func (q *Queue) process(ctx context.Context, entry models.SyncEntry) (outcome, error) {
	// The increment is persisted before delivery so a crash mid-delivery
	// still counts the attempt.
	attempts, err := q.store.IncrementSyncAttempts(ctx, entry.ID)
	if err != nil {
		log.Errorf("sync entry %d: record attempt: %v", entry.ID, err)
		return outcomeFailed, fmt.Errorf("sync entry %d: %w", entry.ID, err)
	}
	entry.Attempts = attempts

	derr := q.deliver(ctx, entry)
	if derr == nil {
		if err := q.store.DeleteSyncEntry(ctx, entry.ID); err != nil {
			// Left in place; the server sees the same idempotency key next time.
			return outcomeFailed, fmt.Errorf("sync entry %d: remove delivered: %w", entry.ID, err)
		}
		log.Infof("synced %s entry %d", entry.SyncType, entry.ID)
		return outcomeDelivered, nil
	}

	if attempts >= q.opts.MaxAttempts {
		if err := q.store.DeleteSyncEntry(ctx, entry.ID); err != nil {
			return outcomeFailed, fmt.Errorf("sync entry %d: remove abandoned: %w", entry.ID, err)
		}
		log.Errorf("abandoned %s entry %d after %d failed attempts: %v", entry.SyncType, entry.ID, attempts, derr)
		q.opts.Telemetry.TrackSyncAbandoned(string(entry.SyncType), attempts)
		return outcomeAbandoned, nil
	}

	log.Warnf("sync entry %d (%s) attempt %d/%d failed: %v", entry.ID, entry.SyncType, attempts, q.opts.MaxAttempts, derr)
	if err := q.store.SetSyncError(ctx, entry.ID, derr.Error()); err != nil {
		return outcomeFailed, fmt.Errorf("sync entry %d: %w", entry.ID, err)
	}
	return outcomeFailed, nil
}

// deliver runs the handler under the delivery timeout. Panics are
// converted to failures.
func (q *Queue) deliver(ctx context.Context, entry models.SyncEntry) (err error) {
	h, ok := q.handler(entry.SyncType)
	if !ok {
		return fmt.Errorf("%w: %w %q", ErrDeliveryFailure, ErrNoHandler, entry.SyncType)
	}

	ctx, span := q.tracer.Start(ctx, "syncq.Deliver", trace.WithAttributes(
		attribute.String("syncq.type", string(entry.SyncType)),
		attribute.Int("syncq.attempt", entry.Attempts),
	))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, q.opts.DeliveryTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: handler panic: %v", ErrDeliveryFailure, r)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "delivery failed")
		}
	}()

	if err := h.Deliver(ctx, entry); err != nil {
		return fmt.Errorf("%w: %w", ErrDeliveryFailure, err)
	}
	return nil
}
