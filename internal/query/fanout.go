package query

import "sync"

// FanOut maintains one subscription per element of a dynamic selection set,
// keyed (base..., element). Elements added to the set gain a subscription;
// removed elements are unsubscribed. The whole fan-out is inert until
// enabled; disabling it unsubscribes everything without losing the set.
type FanOut struct {
	cache *Cache
	base  Key
	opts  Options
	fetch func(element string) Fetcher

	mu       sync.Mutex
	enabled  bool
	elements []string
	subs     map[string]*Subscription
	latest   map[string]Result
	notify   chan struct{}
}

// NewFanOut builds a fan-out over base. fetch derives the per-element
// fetcher from the element value.
func NewFanOut(cache *Cache, base Key, opts Options, fetch func(element string) Fetcher) *FanOut {
	return &FanOut{
		cache:  cache,
		base:   base,
		opts:   opts,
		fetch:  fetch,
		subs:   make(map[string]*Subscription),
		latest: make(map[string]Result),
		notify: make(chan struct{}, 1),
	}
}

// Sync replaces the selection set and reconciles subscriptions against it.
func (f *FanOut) Sync(elements []string) {
	f.mu.Lock()
	f.elements = append([]string(nil), elements...)
	f.mu.Unlock()
	f.reconcile()
}

// SetEnabled gates the whole fan-out. While disabled no queries are issued.
func (f *FanOut) SetEnabled(enabled bool) {
	f.mu.Lock()
	f.enabled = enabled
	f.mu.Unlock()
	f.reconcile()
}

// Elements returns a copy of the current selection set, enabled or not.
func (f *FanOut) Elements() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.elements...)
}

// Snapshot returns the latest Result per subscribed element.
func (f *FanOut) Snapshot() map[string]Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]Result, len(f.latest))
	for el, res := range f.latest {
		out[el] = res
	}
	return out
}

// Ready signals (coalesced) whenever any element's result changes.
func (f *FanOut) Ready() <-chan struct{} {
	return f.notify
}

// Close unsubscribes every element. The selection set is retained, so a
// later SetEnabled(true) resubscribes it.
func (f *FanOut) Close() {
	f.mu.Lock()
	subs := f.subs
	f.subs = make(map[string]*Subscription)
	f.latest = make(map[string]Result)
	f.mu.Unlock()
	for _, sub := range subs {
		sub.Close()
	}
}

func (f *FanOut) reconcile() {
	f.mu.Lock()
	want := make(map[string]bool, len(f.elements))
	if f.enabled {
		for _, el := range f.elements {
			want[el] = true
		}
	}

	var removed []*Subscription
	for el, sub := range f.subs {
		if !want[el] {
			removed = append(removed, sub)
			delete(f.subs, el)
			delete(f.latest, el)
		}
	}
	for el := range want {
		if _, ok := f.subs[el]; ok {
			continue
		}
		sub, cur := f.cache.Subscribe(f.base.With(el), f.fetch(el), f.opts)
		f.subs[el] = sub
		f.latest[el] = cur
		go f.forward(el, sub)
	}
	f.mu.Unlock()

	for _, sub := range removed {
		sub.Close()
	}
	f.wake()
}

func (f *FanOut) forward(element string, sub *Subscription) {
	for res := range sub.Updates() {
		f.mu.Lock()
		if f.subs[element] == sub {
			f.latest[element] = res
		}
		f.mu.Unlock()
		f.wake()
	}
}

func (f *FanOut) wake() {
	select {
	case f.notify <- struct{}{}:
	default:
	}
}
