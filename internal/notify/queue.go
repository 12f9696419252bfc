package notify

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/atena-labs/sentinel-console/agent/internal/model"
)

// DefaultSnoozeWindow is how long a snoozed toast id stays suppressed.
const DefaultSnoozeWindow = time.Hour

// AlertAcker persists an acknowledgement upstream. Failures are tolerated;
// the local removal has already happened by the time this is called.
type AlertAcker interface {
	AcknowledgeAlert(ctx context.Context, alertID int64) error
}

// SnoozeStore keeps the per-id suppression windows.
type SnoozeStore interface {
	Snooze(ctx context.Context, toastID string, until time.Time) error
	IsSnoozed(ctx context.Context, toastID string, now time.Time) (bool, error)
}

// Queue is the single ordered toast queue: at most one entry per identity,
// FIFO by insertion order, with per-entry auto-expiry for ephemeral toasts.
// All mutation goes through Upsert/Remove/Acknowledge/Snooze; reads get
// copies.
type Queue struct {
	acker  AlertAcker
	store  SnoozeStore
	logger *slog.Logger

	mu      sync.Mutex
	toasts  []model.Toast
	gens    map[string]uint64
	nextGen uint64
	paused  bool
	subs    map[uint64]chan model.QueueEvent
	nextSub uint64

	snoozeWindow time.Duration
	now          func() time.Time
	afterFunc    func(d time.Duration, f func()) *time.Timer
}

func NewQueue(acker AlertAcker, store SnoozeStore, logger *slog.Logger) *Queue {
	return &Queue{
		acker:        acker,
		store:        store,
		logger:       logger,
		gens:         make(map[string]uint64),
		subs:         make(map[uint64]chan model.QueueEvent),
		snoozeWindow: DefaultSnoozeWindow,
		now:          time.Now,
		afterFunc:    time.AfterFunc,
	}
}

// Upsert inserts a toast or merges it into the existing entry with the same
// id. Merges preserve the original StartTime, do not replay the sound cue
// and do not reset the expiry timer. New ephemeral toasts get a per-type
// default duration and a one-shot removal timer; persistent-class ids are
// exempt from timers regardless of duration.
func (q *Queue) Upsert(toast model.Toast) {
	now := q.now()
	if toast.ID == "" {
		toast.ID = strconv.FormatInt(now.UnixNano(), 10)
	}
	if toast.Duration == 0 && toast.Type != model.ToastProcess {
		toast.Duration = model.DefaultDuration(toast.Type)
	}

	q.mu.Lock()
	if idx := q.indexOf(toast.ID); idx >= 0 {
		existing := &q.toasts[idx]
		toast.StartTime = existing.StartTime
		*existing = toast
		updated := *existing
		q.mu.Unlock()
		q.publish(model.QueueEvent{Kind: model.QueueEventUpdated, Toast: updated})
		return
	}

	toast.StartTime = now
	q.toasts = append(q.toasts, toast)
	q.nextGen++
	gen := q.nextGen
	q.gens[toast.ID] = gen
	q.mu.Unlock()

	if toast.Duration > 0 && !model.IsPersistentID(toast.ID) {
		id := toast.ID
		q.afterFunc(toast.Duration, func() { q.expire(id, gen) })
	}
	q.publish(model.QueueEvent{Kind: model.QueueEventAdded, Toast: toast, Sound: soundFor(toast.Type)})
}

// Remove drops the toast with the given id, if present.
func (q *Queue) Remove(id string) {
	q.mu.Lock()
	removed, ok := q.removeLocked(id)
	q.mu.Unlock()
	if ok {
		q.publish(model.QueueEvent{Kind: model.QueueEventRemoved, Toast: removed})
	}
}

// RemoveWhere drops every toast matching the predicate.
func (q *Queue) RemoveWhere(pred func(model.Toast) bool) {
	q.mu.Lock()
	var removed []model.Toast
	kept := q.toasts[:0]
	for _, toast := range q.toasts {
		if pred(toast) {
			removed = append(removed, toast)
			delete(q.gens, toast.ID)
			continue
		}
		kept = append(kept, toast)
	}
	q.toasts = kept
	q.mu.Unlock()
	for _, toast := range removed {
		q.publish(model.QueueEvent{Kind: model.QueueEventRemoved, Toast: toast})
	}
}

// Acknowledge removes the toast immediately and, for system alerts, informs
// the backend asynchronously. A failed backend call never rolls back the
// local removal.
func (q *Queue) Acknowledge(ctx context.Context, id string) {
	q.Remove(id)
	if !strings.HasPrefix(id, model.SystemAlertPrefix) || q.acker == nil {
		return
	}
	alertID, err := strconv.ParseInt(strings.TrimPrefix(id, model.SystemAlertPrefix), 10, 64)
	if err != nil {
		q.logger.Warn("unparseable system alert id", "id", id)
		return
	}
	go func() {
		ackCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := q.acker.AcknowledgeAlert(ackCtx, alertID); err != nil {
			q.logger.Warn("alert ack failed", "id", id, "err", err)
		}
	}()
}

// Snooze removes the toast and records a suppression window so poll cycles
// do not re-insert it until the window lapses.
func (q *Queue) Snooze(ctx context.Context, id string) error {
	q.Remove(id)
	if q.store == nil {
		return nil
	}
	return q.store.Snooze(ctx, id, q.now().Add(q.snoozeWindow))
}

// SetPaused toggles the user-interaction pause consulted by the aggregator.
func (q *Queue) SetPaused(paused bool) {
	q.mu.Lock()
	q.paused = paused
	q.mu.Unlock()
}

func (q *Queue) Paused() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.paused
}

// Snapshot returns a copy of the queue in insertion order.
func (q *Queue) Snapshot() []model.Toast {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]model.Toast, len(q.toasts))
	copy(out, q.toasts)
	return out
}

// Head returns the active notification, the FIFO queue head.
func (q *Queue) Head() (model.Toast, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.toasts) == 0 {
		return model.Toast{}, false
	}
	return q.toasts[0], true
}

// Subscribe returns a channel of queue events and a cancel func. Slow
// subscribers drop events rather than blocking the queue.
func (q *Queue) Subscribe() (<-chan model.QueueEvent, func()) {
	ch := make(chan model.QueueEvent, 64)
	q.mu.Lock()
	q.nextSub++
	id := q.nextSub
	q.subs[id] = ch
	q.mu.Unlock()
	return ch, func() {
		q.mu.Lock()
		if existing, ok := q.subs[id]; ok {
			delete(q.subs, id)
			close(existing)
		}
		q.mu.Unlock()
	}
}

// expire removes an ephemeral toast when its timer fires, but only if the
// entry is still the same insertion; a remove-then-reinsert of the same id
// must not be killed by the stale timer.
func (q *Queue) expire(id string, gen uint64) {
	q.mu.Lock()
	if q.gens[id] != gen {
		q.mu.Unlock()
		return
	}
	removed, ok := q.removeLocked(id)
	q.mu.Unlock()
	if ok {
		q.publish(model.QueueEvent{Kind: model.QueueEventRemoved, Toast: removed})
	}
}

func (q *Queue) removeLocked(id string) (model.Toast, bool) {
	idx := q.indexOf(id)
	if idx < 0 {
		return model.Toast{}, false
	}
	removed := q.toasts[idx]
	q.toasts = append(q.toasts[:idx], q.toasts[idx+1:]...)
	delete(q.gens, id)
	return removed, true
}

func (q *Queue) indexOf(id string) int {
	for i := range q.toasts {
		if q.toasts[i].ID == id {
			return i
		}
	}
	return -1
}

func (q *Queue) publish(event model.QueueEvent) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, ch := range q.subs {
		select {
		case ch <- event:
		default:
		}
	}
}

func soundFor(t model.ToastType) model.SoundCue {
	switch t {
	case model.ToastCritical:
		return model.SoundCritical
	case model.ToastWarning:
		return model.SoundWarning
	default:
		return model.SoundNone
	}
}
