// Package progress implements the Progress Publisher (§4.9): it receives
// the orchestrator's ProgressEvents, fans them out to subscribers in strict
// per-(seller, job_id) order, and gives a newly (re)subscribed client the
// latest cumulative progress rather than the backlog of events it missed,
// grounded on the teacher's Redis pub/sub wiring in
// orchestration/redis_task_queue.go.
package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/go-redis/redis/v8"

	"github.com/clarioclaims/engine/domain"
	"github.com/clarioclaims/engine/internal/platformlog"
)

// EventKind distinguishes the publisher's event taxonomy beyond the plain
// per-task progress events the orchestrator emits.
type EventKind string

const (
	EventProgress     EventKind = "progress"
	EventLogInfo      EventKind = "log_info"
	EventLogSuccess   EventKind = "log_success"
	EventLogWarn      EventKind = "log_warn"
	EventLogError     EventKind = "log_error"
	EventCompleted    EventKind = "completed"
	EventFailed       EventKind = "failed"
	EventNotification EventKind = "notification"
)

// Event is the full envelope delivered to subscribers.
type Event struct {
	Kind  EventKind            `json:"kind"`
	Job   domain.ProgressEvent `json:"job"`
	Extra string               `json:"extra,omitempty"`
}

func channelKey(seller domain.SellerID, jobID string) string {
	return fmt.Sprintf("claims:progress:%s:%s", seller, jobID)
}

// Authorizer decides whether a subscriber may receive events for a given
// seller, an external collaborator stubbed the way §6 names it.
type Authorizer interface {
	Authorize(ctx context.Context, subscriber string, seller domain.SellerID) (bool, error)
}

// AllowAll is the permissive Authorizer used by the reference CLI and
// tests.
type AllowAll struct{}

func (AllowAll) Authorize(context.Context, string, domain.SellerID) (bool, error) { return true, nil }

// Publisher accepts ProgressEvents from the orchestrator and fans them out
// over Redis pub/sub, one channel per (seller, job_id) so ordering across
// unrelated jobs never interferes with a single job's FIFO guarantee.
type Publisher struct {
	client *redis.Client
	auth   Authorizer
	logger platformlog.Logger

	mu       sync.Mutex
	latest   map[string]Event // channelKey -> most recent cumulative event
	notifyMu sync.Mutex
	notified []domain.Notification
}

func NewPublisher(client *redis.Client, auth Authorizer, logger platformlog.ComponentAwareLogger) *Publisher {
	if auth == nil {
		auth = AllowAll{}
	}
	var lg platformlog.Logger = platformlog.Noop()
	if logger != nil {
		lg = logger.WithComponent("progress/publisher")
	}
	return &Publisher{client: client, auth: auth, logger: lg, latest: make(map[string]Event)}
}

// Publish delivers event to its (seller, job_id) channel and records it as
// the latest cumulative state for that job, best-effort: a publish failure
// is logged, never returned to the orchestrator, since a missed progress
// tick must never abort the sync job itself (§4.9).
func (p *Publisher) Publish(ctx context.Context, ev domain.ProgressEvent) error {
	kind := EventProgress
	switch ev.Status {
	case domain.TaskCompleted:
		kind = EventLogSuccess
	case domain.TaskFailed:
		kind = EventLogWarn
	}
	return p.publish(ctx, ev.SellerID, ev.JobID, Event{Kind: kind, Job: ev})
}

// Complete publishes the terminal "completed" event for a job.
func (p *Publisher) Complete(ctx context.Context, seller domain.SellerID, jobID string, total int) error {
	return p.publish(ctx, seller, jobID, Event{Kind: EventCompleted, Job: domain.ProgressEvent{SellerID: seller, JobID: jobID, Current: total, Total: total}})
}

// Fail publishes the terminal "failed" event for a job.
func (p *Publisher) Fail(ctx context.Context, seller domain.SellerID, jobID, message string) error {
	return p.publish(ctx, seller, jobID, Event{Kind: EventFailed, Job: domain.ProgressEvent{SellerID: seller, JobID: jobID, Message: message}})
}

// Notify publishes a routing notification (e.g. "EvidenceMatched") for a
// claim outside any sync job's channel, matching the Notifier contract
// router.Notifier expects.
func (p *Publisher) Notify(ctx context.Context, n domain.Notification) error {
	p.notifyMu.Lock()
	p.notified = append(p.notified, n)
	p.notifyMu.Unlock()

	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	channel := fmt.Sprintf("claims:notifications:%s", n.SellerID)
	if p.client != nil {
		if err := p.client.Publish(ctx, channel, payload).Err(); err != nil {
			p.logger.Warn("notification publish failed", map[string]interface{}{"error": err.Error()})
		}
	}
	return nil
}

func (p *Publisher) publish(ctx context.Context, seller domain.SellerID, jobID string, ev Event) error {
	key := channelKey(seller, jobID)

	p.mu.Lock()
	p.latest[key] = ev
	p.mu.Unlock()

	if p.client == nil {
		return nil
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		p.logger.Warn("marshal progress event failed", map[string]interface{}{"error": err.Error()})
		return nil
	}
	if err := p.client.Publish(ctx, key, payload).Err(); err != nil {
		p.logger.Warn("progress publish failed", map[string]interface{}{"job_id": jobID, "error": err.Error()})
	}
	return nil
}

// Latest returns the most recent cumulative event for (seller, job_id), the
// snapshot a newly (re)subscribed client is given instead of a backlog
// replay.
func (p *Publisher) Latest(seller domain.SellerID, jobID string) (Event, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ev, ok := p.latest[channelKey(seller, jobID)]
	return ev, ok
}

// Subscribe authorizes subscriber for seller and returns a channel that
// first yields the latest cumulative snapshot (if any), then every
// subsequently published event for (seller, job_id) in FIFO order. The
// returned cancel func must be called to release the underlying
// subscription.
func (p *Publisher) Subscribe(ctx context.Context, subscriber string, seller domain.SellerID, jobID string) (<-chan Event, func(), error) {
	ok, err := p.auth.Authorize(ctx, subscriber, seller)
	if err != nil {
		return nil, nil, fmt.Errorf("authorize subscriber: %w", err)
	}
	if !ok {
		return nil, nil, fmt.Errorf("subscriber %q not authorized for seller %q", subscriber, seller)
	}

	out := make(chan Event, 16)
	key := channelKey(seller, jobID)

	if snapshot, has := p.Latest(seller, jobID); has {
		out <- snapshot
	}

	if p.client == nil {
		close(out)
		return out, func() {}, nil
	}

	sub := p.client.Subscribe(ctx, key)
	// Wait for the subscription to be confirmed so events published after
	// Subscribe returns are not lost.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("subscribe %s: %w", key, err)
	}
	ch := sub.Channel()

	done := make(chan struct{})
	go func() {
		defer close(out)
		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					continue
				}
				select {
				case out <- ev:
				case <-done:
					return
				}
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	cancel := func() {
		close(done)
		_ = sub.Close()
	}
	return out, cancel, nil
}
