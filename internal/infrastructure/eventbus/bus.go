package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/storefront-pipeline/internal/pkg/id"
)

// CronPrefix is prepended to the id of a SubscribeCron subscription to form
// the name of its timer event.
const CronPrefix = "cron/"

// Bus routes published events to named subscriptions. Every subscription has
// its own queue and workers, so a slow handler never delays another one.
type Bus struct {
	cfg        Config
	logger     *slog.Logger
	rec        Recorder
	store      IdempotencyStore
	ttl        time.Duration
	forwarders []Forwarder
	now        func() time.Time

	mu      sync.RWMutex
	byName  map[string][]*subscription
	byID    map[string]*subscription
	started bool
	closed  bool
	quit    chan struct{} // closed by Stop; releases publishers blocked on a full queue
	pubWG   sync.WaitGroup

	runCtx     context.Context
	cancelRun  context.CancelFunc
	cancelCron context.CancelFunc
	wg         sync.WaitGroup
	cronWG     sync.WaitGroup
}

type subscription struct {
	id      string
	name    string
	cfg     Config
	batch   *BatchPolicy
	daily   *DailyAt
	handle  BatchHandler
	in      chan Event
	work    chan []Event
	lastRun string // date of the last daily trigger
}

func New(cfg Config, opts ...BusOption) *Bus {
	b := &Bus{
		cfg:    cfg.withDefaults(),
		logger: slog.Default(),
		rec:    nopRecorder{},
		now:    time.Now,
		byName: make(map[string][]*subscription),
		byID:   make(map[string]*subscription),
		quit:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe delivers every event named name to h, one at a time.
func (b *Bus) Subscribe(subID, name string, h Handler, opts ...Option) error {
	if h == nil {
		return fmt.Errorf("subscribe %s: nil handler", subID)
	}
	return b.add(&subscription{
		id:   subID,
		name: name,
		handle: func(ctx context.Context, evs []Event) error {
			return h(ctx, evs[0])
		},
	}, opts)
}

// SubscribeBatch delivers events named name to h in groups bounded by p.
func (b *Bus) SubscribeBatch(subID, name string, h BatchHandler, p BatchPolicy, opts ...Option) error {
	if h == nil {
		return fmt.Errorf("subscribe %s: nil handler", subID)
	}
	if p.MaxSize <= 0 || p.Timeout <= 0 {
		return fmt.Errorf("subscribe %s: batch policy needs a positive size and timeout", subID)
	}
	return b.add(&subscription{id: subID, name: name, batch: &p, handle: h}, opts)
}

// SubscribeCron delivers a timer event named CronPrefix+subID to h once a day
// at the given time. Publishing that name by hand triggers the job as well.
func (b *Bus) SubscribeCron(subID string, at DailyAt, h Handler, opts ...Option) error {
	if at.Hour < 0 || at.Hour > 23 || at.Minute < 0 || at.Minute > 59 {
		return fmt.Errorf("subscribe %s: invalid time of day %02d:%02d", subID, at.Hour, at.Minute)
	}
	if h == nil {
		return fmt.Errorf("subscribe %s: nil handler", subID)
	}
	return b.add(&subscription{
		id:    subID,
		name:  CronPrefix + subID,
		daily: &at,
		handle: func(ctx context.Context, evs []Event) error {
			return h(ctx, evs[0])
		},
	}, opts)
}

func (b *Bus) add(s *subscription, opts []Option) error {
	s.cfg = b.cfg
	for _, opt := range opts {
		opt(&s.cfg)
	}
	s.cfg = s.cfg.withDefaults()
	s.in = make(chan Event, s.cfg.QueueSize)
	s.work = make(chan []Event, s.cfg.Workers)

	b.mu.Lock()
	defer b.mu.Unlock()
	switch {
	case b.closed:
		return ErrClosed
	case b.started:
		return fmt.Errorf("subscribe %s: bus already started", s.id)
	}
	if _, dup := b.byID[s.id]; dup {
		return fmt.Errorf("subscribe %s: duplicate subscription id", s.id)
	}
	b.byID[s.id] = s
	b.byName[s.name] = append(b.byName[s.name], s)
	return nil
}

// Publish assigns an id to payload and enqueues it for every subscription of
// name. An event nobody subscribes to is still forwarded.
func (b *Bus) Publish(ctx context.Context, name string, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", name, err)
	}
	ev := Event{ID: id.New(), Name: name, Data: data, Timestamp: b.now().UTC()}
	if err := b.enqueue(ctx, ev); err != nil {
		return Event{}, err
	}
	for _, f := range b.forwarders {
		if err := f.Forward(ctx, ev); err != nil {
			b.logger.Warn("could not forward event", "event", ev.Name, "event_id", ev.ID, "err", err)
		}
	}
	return ev, nil
}

// enqueue snapshots the subscriptions under the read lock and sends without
// it, so Stop is never held up by a full queue. Stop waits for in-flight
// sends before closing the queues.
func (b *Bus) enqueue(ctx context.Context, ev Event) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrClosed
	}
	subs := b.byName[ev.Name]
	b.pubWG.Add(1)
	b.mu.RUnlock()
	defer b.pubWG.Done()

	for _, s := range subs {
		select {
		case s.in <- ev:
		case <-b.quit:
			return ErrClosed
		case <-ctx.Done():
			return fmt.Errorf("enqueue %s for %s: %w", ev.Name, s.id, ctx.Err())
		}
	}
	return nil
}

// Start launches the workers, batch collectors and daily timers.
func (b *Bus) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	if b.started {
		return nil
	}
	b.started = true
	b.runCtx, b.cancelRun = context.WithCancel(context.WithoutCancel(ctx))
	cronCtx, cancelCron := context.WithCancel(ctx)
	b.cancelCron = cancelCron

	for _, s := range b.byID {
		if s.batch != nil {
			b.wg.Add(1)
			go b.collect(s)
		} else {
			b.wg.Add(1)
			go b.wrapSingles(s)
		}
		for i := 0; i < s.cfg.Workers; i++ {
			b.wg.Add(1)
			go b.work(s)
		}
		if s.daily != nil {
			b.cronWG.Add(1)
			go b.runDaily(cronCtx, s)
		}
	}
	b.logger.Info("event bus started", "subscriptions", len(b.byID))
	return nil
}

// Stop closes intake, flushes pending batches and waits for in-flight
// handlers. If ctx expires first, running handlers are cancelled.
func (b *Bus) Stop(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	started := b.started
	if b.cancelCron != nil {
		b.cancelCron()
	}
	close(b.quit)
	b.mu.Unlock()

	b.pubWG.Wait()
	for _, s := range b.byID {
		close(s.in)
	}

	if !started {
		return nil
	}
	b.cronWG.Wait()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		b.cancelRun()
		b.logger.Info("event bus stopped")
		return nil
	case <-ctx.Done():
		b.cancelRun()
		return ctx.Err()
	}
}

func (b *Bus) wrapSingles(s *subscription) {
	defer b.wg.Done()
	defer close(s.work)
	for ev := range s.in {
		s.work <- []Event{ev}
	}
}

// collect groups events into batches. The timer starts with the first event
// of a batch; a partial batch is flushed when it fires or on shutdown.
func (b *Bus) collect(s *subscription) {
	defer b.wg.Done()
	defer close(s.work)

	var (
		buf    []Event
		timer  *time.Timer
		timerC <-chan time.Time
	)
	flush := func(trigger string) {
		if timer != nil {
			timer.Stop()
			timer, timerC = nil, nil
		}
		if len(buf) == 0 {
			return
		}
		b.rec.BatchFlushed(s.id, len(buf), trigger)
		s.work <- buf
		buf = nil
	}

	for {
		select {
		case ev, ok := <-s.in:
			if !ok {
				flush("shutdown")
				return
			}
			buf = append(buf, ev)
			if len(buf) == 1 {
				timer = time.NewTimer(s.batch.Timeout)
				timerC = timer.C
			}
			if len(buf) >= s.batch.MaxSize {
				flush("size")
			}
		case <-timerC:
			timer, timerC = nil, nil
			flush("timeout")
		}
	}
}

func (b *Bus) work(s *subscription) {
	defer b.wg.Done()
	for evs := range s.work {
		b.deliver(s, evs)
	}
}

// deliver runs the handler until it succeeds, fails permanently or runs out
// of attempts.
func (b *Bus) deliver(s *subscription, evs []Event) {
	ctx := b.runCtx
	evs = b.dropProcessed(ctx, s, evs)
	if len(evs) == 0 {
		return
	}

	var err error
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		for i := range evs {
			evs[i].Attempt = attempt
		}
		if err = b.invoke(ctx, s, evs); err == nil {
			b.rec.Delivered(s.id, len(evs))
			b.markProcessed(ctx, s, evs)
			return
		}
		b.rec.Failed(s.id)
		b.logger.Warn("event handler failed",
			"subscription", s.id, "event", s.name, "events", len(evs),
			"attempt", attempt, "max_attempts", s.cfg.MaxAttempts, "err", err)
		if IsPermanent(err) || attempt == s.cfg.MaxAttempts {
			break
		}
		if !sleep(ctx, s.cfg.RetryBackoff*time.Duration(attempt)) {
			break
		}
	}

	b.rec.DeadLettered(s.id, len(evs))
	ids := make([]string, len(evs))
	for i, ev := range evs {
		ids[i] = ev.ID
	}
	b.logger.Error("event dead-lettered",
		"subscription", s.id, "event", s.name, "event_ids", ids, "err", err)
}

func (b *Bus) invoke(ctx context.Context, s *subscription, evs []Event) (err error) {
	if s.cfg.HandlerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.HandlerTimeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return s.handle(ctx, evs)
}

func (b *Bus) dropProcessed(ctx context.Context, s *subscription, evs []Event) []Event {
	if b.store == nil {
		return evs
	}
	kept := evs[:0:0]
	for _, ev := range evs {
		done, err := b.store.IsProcessed(ctx, dedupKey(s, ev))
		if err != nil {
			b.logger.Warn("idempotency check failed, delivering anyway",
				"subscription", s.id, "event_id", ev.ID, "err", err)
		}
		if done {
			b.rec.Duplicate(s.id)
			continue
		}
		kept = append(kept, ev)
	}
	return kept
}

func (b *Bus) markProcessed(ctx context.Context, s *subscription, evs []Event) {
	if b.store == nil {
		return
	}
	for _, ev := range evs {
		if _, err := b.store.MarkProcessed(ctx, dedupKey(s, ev), b.ttl); err != nil {
			b.logger.Warn("could not record processed event",
				"subscription", s.id, "event_id", ev.ID, "err", err)
		}
	}
}

func dedupKey(s *subscription, ev Event) string {
	return s.id + ":" + ev.ID
}

// runDaily fires the subscription once per calendar day at its DailyAt time.
func (b *Bus) runDaily(ctx context.Context, s *subscription) {
	defer b.cronWG.Done()
	ticker := time.NewTicker(s.cfg.CronInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.tick(ctx, s)
		}
	}
}

func (b *Bus) tick(ctx context.Context, s *subscription) {
	now := b.now()
	today := now.Format("2006-01-02")
	if s.lastRun == today || now.Hour() != s.daily.Hour || now.Minute() != s.daily.Minute {
		return
	}
	s.lastRun = today
	ev := Event{ID: id.New(), Name: s.name, Data: json.RawMessage(`{}`), Timestamp: now.UTC()}
	if err := b.enqueue(ctx, ev); err != nil && !errors.Is(err, ErrClosed) {
		b.logger.Warn("could not enqueue timer event", "subscription", s.id, "err", err)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
