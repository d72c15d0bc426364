package query

import (
	"context"
	"sync"
	"time"
)

// Status describes the lifecycle phase of a cache entry.
type Status int

const (
	StatusPending Status = iota
	StatusSuccess
	StatusError
)

// String returns a lowercase label for the status.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Fetcher loads the value for a key. Fetchers never retry internally; retry
// policy belongs to the cache and its callers.
type Fetcher func(ctx context.Context) (any, error)

// Options configure one query's caching behavior.
type Options struct {
	// StaleAfter is how long a settled result is served without issuing a
	// new fetch. Zero means a new subscription always revalidates.
	StaleAfter time.Duration
	// RefetchInterval, when positive, schedules a background refetch at
	// that cadence for as long as at least one subscriber exists.
	RefetchInterval time.Duration
}

// Result is an immutable snapshot of a cache entry. Data is retained across
// refetches and failed fetches, so consumers can render stale data alongside
// a pending spinner or an error banner; HasData distinguishes "no data yet"
// from a cached zero value.
type Result struct {
	Key       Key
	Status    Status
	Data      any
	HasData   bool
	Err       error
	FetchedAt time.Time
}

const defaultGCGrace = 30 * time.Second

// Cache owns the lifetime of every query entry. All access goes through
// Subscribe, Invalidate and Peek; entries are never mutated directly, which
// keeps settlements atomic from any consumer's point of view.
type Cache struct {
	mu      sync.Mutex
	ctx     context.Context
	entries map[string]*entry
	gcGrace time.Duration
	nextSub int
	now     func() time.Time
}

// NewCache builds a cache whose fetches are bound to ctx. Cancelling ctx
// stops background polling; in-flight fetches observe the cancellation
// through their own context parameter.
func NewCache(ctx context.Context) *Cache {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Cache{
		ctx:     ctx,
		entries: make(map[string]*entry),
		gcGrace: defaultGCGrace,
		now:     time.Now,
	}
}

type entry struct {
	key     Key
	fetcher Fetcher
	opts    Options

	status    Status
	data      any
	hasData   bool
	err       error
	fetchedAt time.Time

	// issued counts fetches started for this key. A settlement is applied
	// only when its sequence number is still the latest issued, so results
	// land in issuance order, never completion order.
	issued   uint64
	inFlight bool

	subs     map[int]chan Result
	stopPoll chan struct{}
	gcTimer  *time.Timer
}

// Subscription represents one consumer's interest in a key. The consumer
// receives coalesced live updates on Updates until Close is called; Close is
// the guaranteed release path for the entry's polling interval.
type Subscription struct {
	cache   *Cache
	key     Key
	id      int
	updates chan Result
	once    sync.Once
}

// Key returns the subscribed key.
func (s *Subscription) Key() Key {
	return s.key
}

// Updates delivers entry snapshots as they settle. The channel holds only
// the latest result (older undelivered updates are dropped) and is closed
// by Close.
func (s *Subscription) Updates() <-chan Result {
	return s.updates
}

// Close unregisters the subscriber. When the last subscriber for a key
// leaves, its polling interval stops and a grace timer is started after
// which the entry is garbage-collected. Close is idempotent.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.cache.unsubscribe(s.key, s.id)
	})
}

// Subscribe registers interest in key. If no entry exists, or the existing
// entry is stale, a fetch is scheduled; concurrent subscriptions to a key
// with a fetch already in flight attach to that single request. The returned
// Result is the entry's current snapshot.
func (c *Cache) Subscribe(key Key, fetcher Fetcher, opts Options) (*Subscription, Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextSub
	c.nextSub++

	e := c.entries[key.id()]
	if e == nil {
		e = &entry{
			key:    key,
			status: StatusPending,
			subs:   make(map[int]chan Result),
		}
		c.entries[key.id()] = e
	}
	e.fetcher = fetcher
	e.opts = opts
	if e.gcTimer != nil {
		e.gcTimer.Stop()
		e.gcTimer = nil
	}

	ch := make(chan Result, 1)
	e.subs[id] = ch

	if !e.inFlight && c.stale(e) {
		c.startFetch(e, false)
	}
	if opts.RefetchInterval > 0 && e.stopPoll == nil {
		stop := make(chan struct{})
		e.stopPoll = stop
		go c.poll(key, opts.RefetchInterval, stop)
	}

	return &Subscription{cache: c, key: key, id: id, updates: ch}, c.snapshot(e)
}

// Invalidate marks every entry whose key starts with prefix as stale and
// refetches those that currently have subscribers. A refetch issued here
// supersedes any fetch already in flight for the same key.
func (c *Cache) Invalidate(prefix Key) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, e := range c.entries {
		if !e.key.HasPrefix(prefix) {
			continue
		}
		e.fetchedAt = time.Time{}
		if len(e.subs) > 0 {
			c.startFetch(e, true)
		}
	}
}

// Peek returns the current snapshot for key without subscribing.
func (c *Cache) Peek(key Key) (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entries[key.id()]
	if e == nil {
		return Result{}, false
	}
	return c.snapshot(e), true
}

// stale reports whether e needs revalidation. Caller holds c.mu.
func (c *Cache) stale(e *entry) bool {
	if e.fetchedAt.IsZero() {
		return true
	}
	return !c.now().Before(e.fetchedAt.Add(e.opts.StaleAfter))
}

// startFetch issues a new fetch for e. With force set it supersedes an
// in-flight fetch; otherwise an in-flight fetch absorbs the request.
// Caller holds c.mu.
func (c *Cache) startFetch(e *entry, force bool) {
	if e.inFlight && !force {
		return
	}
	e.issued++
	seq := e.issued
	e.inFlight = true
	e.status = StatusPending
	c.notify(e)

	fetcher := e.fetcher
	key := e.key
	go func() {
		data, err := fetcher(c.ctx)
		c.settle(key, seq, data, err)
	}()
}

func (c *Cache) settle(key Key, seq uint64, data any, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entries[key.id()]
	if e == nil {
		// Entry was garbage-collected while the fetch was in flight.
		return
	}
	if seq != e.issued {
		// A newer fetch was issued before this one settled; its outcome
		// wins, this one is discarded.
		return
	}
	e.inFlight = false
	e.fetchedAt = c.now()
	if err != nil {
		e.status = StatusError
		e.err = err
	} else {
		e.status = StatusSuccess
		e.data = data
		e.hasData = true
		e.err = nil
	}
	c.notify(e)
}

func (c *Cache) poll(key Key, every time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			if e := c.entries[key.id()]; e != nil && len(e.subs) > 0 {
				c.startFetch(e, false)
			}
			c.mu.Unlock()
		}
	}
}

func (c *Cache) unsubscribe(key Key, id int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entries[key.id()]
	if e == nil {
		return
	}
	ch, ok := e.subs[id]
	if !ok {
		return
	}
	delete(e.subs, id)
	close(ch)
	if len(e.subs) > 0 {
		return
	}
	if e.stopPoll != nil {
		close(e.stopPoll)
		e.stopPoll = nil
	}
	keyID := key.id()
	e.gcTimer = time.AfterFunc(c.gcGrace, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if cur := c.entries[keyID]; cur != nil && len(cur.subs) == 0 {
			delete(c.entries, keyID)
		}
	})
}

// snapshot builds an immutable Result for e. Caller holds c.mu.
func (c *Cache) snapshot(e *entry) Result {
	return Result{
		Key:       e.key,
		Status:    e.status,
		Data:      e.data,
		HasData:   e.hasData,
		Err:       e.err,
		FetchedAt: e.fetchedAt,
	}
}

// notify pushes the current snapshot to every subscriber. Sends happen only
// under c.mu, so they never race with channel close in unsubscribe.
// Caller holds c.mu.
func (c *Cache) notify(e *entry) {
	res := c.snapshot(e)
	for _, ch := range e.subs {
		push(ch, res)
	}
}

// push delivers res on a capacity-one channel, displacing an undelivered
// older result so the receiver always observes the latest state.
func push(ch chan Result, res Result) {
	for {
		select {
		case ch <- res:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
