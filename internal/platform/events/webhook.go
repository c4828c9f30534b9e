package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Endpoint is a registered collaborator webhook. An empty EventName
// subscribes the endpoint to every event.
type Endpoint struct {
	Name      string
	URL       string
	EventName string
	Headers   []string
}

type pendingDelivery struct {
	endpoint      Endpoint
	event         Event
	attemptCount  int
	nextAttemptAt time.Time
}

// WebhookEngine delivers emitted events to registered collaborator endpoints
// with retry and backoff. It subscribes to the bus and queues matching
// events; Start runs the delivery loop until the context is cancelled.
type WebhookEngine struct {
	logger zerolog.Logger
	client *http.Client

	mu        sync.Mutex
	endpoints []Endpoint
	queue     []*pendingDelivery

	// DeliveryInterval controls how often the pending queue is drained.
	DeliveryInterval time.Duration
	// MaxAttempts is the number of delivery attempts before abandonment.
	MaxAttempts int
}

func NewWebhookEngine(logger zerolog.Logger) *WebhookEngine {
	return &WebhookEngine{
		logger:           logger,
		client:           &http.Client{Timeout: 10 * time.Second},
		DeliveryInterval: 5 * time.Second,
		MaxAttempts:      5,
	}
}

// Register adds a collaborator endpoint.
func (we *WebhookEngine) Register(ep Endpoint) {
	we.mu.Lock()
	defer we.mu.Unlock()
	we.endpoints = append(we.endpoints, ep)
}

// AttachTo subscribes the engine to every event on the bus.
func (we *WebhookEngine) AttachTo(bus *Bus) {
	bus.Subscribe(All, we.onEvent)
}

func (we *WebhookEngine) onEvent(_ context.Context, e Event) {
	we.mu.Lock()
	defer we.mu.Unlock()
	for _, ep := range we.endpoints {
		if ep.EventName != "" && ep.EventName != e.Name {
			continue
		}
		we.queue = append(we.queue, &pendingDelivery{
			endpoint:      ep,
			event:         e,
			nextAttemptAt: time.Now(),
		})
	}
}

// Start runs the delivery loop. It blocks until ctx is cancelled.
func (we *WebhookEngine) Start(ctx context.Context) {
	ticker := time.NewTicker(we.DeliveryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			we.deliverPending(ctx)
		}
	}
}

func (we *WebhookEngine) deliverPending(ctx context.Context) {
	now := time.Now()

	we.mu.Lock()
	due := make([]*pendingDelivery, 0, len(we.queue))
	for _, p := range we.queue {
		if !p.nextAttemptAt.After(now) {
			due = append(due, p)
		}
	}
	we.mu.Unlock()

	for _, p := range due {
		we.deliverOne(ctx, p)
	}
}

func (we *WebhookEngine) deliverOne(ctx context.Context, p *pendingDelivery) {
	body, err := json.Marshal(p.event)
	if err != nil {
		we.drop(p, "marshal event: "+err.Error())
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint.URL, bytes.NewReader(body))
	if err != nil {
		we.drop(p, "build request: "+err.Error())
		return
	}
	req.Header.Set("Content-Type", "application/json")
	for _, h := range p.endpoint.Headers {
		parts := strings.SplitN(h, ":", 2)
		if len(parts) == 2 {
			req.Header.Set(strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]))
		}
	}

	resp, err := we.client.Do(req)
	if err != nil {
		we.retryOrDrop(p, "http post: "+err.Error())
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		we.remove(p)
		return
	}
	we.retryOrDrop(p, fmt.Sprintf("http status %d", resp.StatusCode))
}

func (we *WebhookEngine) retryOrDrop(p *pendingDelivery, errMsg string) {
	p.attemptCount++
	if p.attemptCount >= we.MaxAttempts {
		we.drop(p, "max delivery attempts reached: "+errMsg)
		return
	}
	p.nextAttemptAt = time.Now().Add(retryBackoff(p.attemptCount))
	we.logger.Warn().
		Str("endpoint", p.endpoint.Name).
		Str("event", p.event.Name).
		Int("attempt", p.attemptCount).
		Msg("webhook delivery failed: " + errMsg)
}

func (we *WebhookEngine) drop(p *pendingDelivery, reason string) {
	we.remove(p)
	we.logger.Error().
		Str("endpoint", p.endpoint.Name).
		Str("event", p.event.Name).
		Msg("webhook delivery abandoned: " + reason)
}

func (we *WebhookEngine) remove(target *pendingDelivery) {
	we.mu.Lock()
	defer we.mu.Unlock()
	for i, p := range we.queue {
		if p == target {
			we.queue = append(we.queue[:i], we.queue[i+1:]...)
			return
		}
	}
}

// retryBackoff returns the delay for a given attempt number (1-indexed).
// Schedule: 30s, 1m, 5m, 15m, 1h.
func retryBackoff(attempt int) time.Duration {
	switch attempt {
	case 1:
		return 30 * time.Second
	case 2:
		return 1 * time.Minute
	case 3:
		return 5 * time.Minute
	case 4:
		return 15 * time.Minute
	default:
		return 1 * time.Hour
	}
}
