package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Chardonneaur/VisitorExclusion/internal/snapshot"
	"github.com/Chardonneaur/VisitorExclusion/internal/telemetry"
)

const (
	defaultQueueSize   = 100
	defaultTimeout     = 5 * time.Second
	defaultBaseBackoff = time.Second

	// maxResponseBodySize limits how much of an error response we log
	maxResponseBodySize = 1024

	userAgent = "VisitorExclusion-Webhook/1.0"
)

// Delivery results recorded in telemetry.
const (
	resultSuccess = "success"
	resultRetry   = "retry"
	resultFailed  = "failed"
	resultDropped = "dropped"
)

// Options tunes delivery. Zero durations and sizes select the defaults.
type Options struct {
	Timeout     time.Duration // per attempt
	MaxRetries  int           // attempts after the first one
	BaseBackoff time.Duration // doubled after each failed attempt
	QueueSize   int
	Client      *http.Client
	Logger      zerolog.Logger
}

// Source is the part of snapshot.Holder the dispatcher watches.
type Source interface {
	Subscribe() (<-chan string, func())
	Load() *snapshot.Snapshot
}

// Dispatcher delivers events to every endpoint from a single background
// worker, in order.
type Dispatcher struct {
	endpoints []Endpoint
	client    *http.Client
	opts      Options
	logger    zerolog.Logger

	mu       sync.RWMutex
	closed   bool
	queue    chan Event
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewDispatcher creates a dispatcher; call Start to begin delivering.
func NewDispatcher(endpoints []Endpoint, opts Options) *Dispatcher {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.BaseBackoff <= 0 {
		opts.BaseBackoff = defaultBaseBackoff
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{}
	}

	return &Dispatcher{
		endpoints: endpoints,
		client:    client,
		opts:      opts,
		logger:    opts.Logger.With().Str("component", "webhook").Logger(),
		queue:     make(chan Event, opts.QueueSize),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start begins processing events from the queue
func (d *Dispatcher) Start() {
	go d.worker()
}

// Close stops accepting events and waits until every queued event has been
// delivered or has exhausted its retries. Close is safe to call multiple times.
func (d *Dispatcher) Close() error {
	return d.Shutdown(context.Background())
}

// Shutdown is Close with a deadline: once ctx is done, pending retries are
// abandoned and the remaining queue gets a single attempt per endpoint.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		d.stopOnce.Do(func() { close(d.stop) })
		<-d.done
		return ctx.Err()
	}
}

// Dispatch queues an event. It never blocks; a full queue drops the event.
func (d *Dispatcher) Dispatch(event Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	select {
	case d.queue <- event:
		d.logger.Debug().Str("event_id", event.ID).Str("etag", event.ETag).Int("queued", len(d.queue)).Msg("event queued")
	default:
		telemetry.WebhookDeliveries.WithLabelValues(resultDropped).Inc()
		d.logger.Warn().Str("event_id", event.ID).Int("queue_size", cap(d.queue)).Msg("webhook queue full, dropping event")
	}
}

// Watch dispatches a snapshot.updated event for every change published by
// src until ctx is done.
func (d *Dispatcher) Watch(ctx context.Context, src Source) error {
	updates, unsubscribe := src.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-updates:
			if !ok {
				return nil
			}
			d.Dispatch(NewSnapshotEvent(src.Load(), time.Now()))
		}
	}
}

func (d *Dispatcher) worker() {
	defer close(d.done)

	for event := range d.queue {
		payload, err := json.Marshal(event)
		if err != nil {
			d.logger.Error().Err(err).Str("event_id", event.ID).Msg("failed to marshal event payload")
			continue
		}
		for _, ep := range d.endpoints {
			d.deliverWithRetry(ep, event, payload)
		}
	}
}

// deliverWithRetry retries network errors, 429 and 5xx responses with
// exponential backoff. Other 4xx responses are final.
func (d *Dispatcher) deliverWithRetry(ep Endpoint, event Event, payload []byte) {
	backoff := d.opts.BaseBackoff
	attempts := d.opts.MaxRetries + 1

	for attempt := 1; attempt <= attempts; attempt++ {
		start := time.Now()
		status, body, err := d.deliver(ep, event, payload)
		log := d.logger.With().
			Str("event_id", event.ID).
			Str("url", ep.URL).
			Int("attempt", attempt).
			Int("max_attempts", attempts).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Logger()

		if err == nil && status >= 200 && status < 300 {
			telemetry.WebhookDeliveries.WithLabelValues(resultSuccess).Inc()
			log.Debug().Msg("delivery succeeded")
			return
		}

		retryable := err != nil || status == http.StatusTooManyRequests || status >= 500
		if !retryable || attempt == attempts {
			telemetry.WebhookDeliveries.WithLabelValues(resultFailed).Inc()
			log.Error().Err(err).Str("response", body).Msg("delivery failed permanently")
			return
		}

		telemetry.WebhookDeliveries.WithLabelValues(resultRetry).Inc()
		log.Warn().Err(err).Dur("retry_in", backoff).Msg("delivery failed")

		select {
		case <-time.After(backoff):
		case <-d.stop:
			telemetry.WebhookDeliveries.WithLabelValues(resultFailed).Inc()
			log.Warn().Msg("shutting down, abandoning retries")
			return
		}
		backoff *= 2
	}
}

func (d *Dispatcher) deliver(ep Endpoint, event Event, payload []byte) (int, string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), d.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.URL, bytes.NewReader(payload))
	if err != nil {
		return 0, "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Exclusion-Event", event.Type)
	req.Header.Set("X-Exclusion-Delivery", event.ID)
	if ep.Secret != "" {
		req.Header.Set(SignatureHeader, Sign(payload, ep.Secret, time.Now()))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	var body string
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
		body = string(b)
	} else {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBodySize))
	}
	return resp.StatusCode, body, nil
}
