// Package query provides the client-side resource synchronization layer:
// a keyed cache of remote query results, dependent query fan-out, and a
// mutation runner with declarative cache invalidation.
//
// # Overview
//
// Stride keeps several independently-changing remote collections (jobs,
// registry images, secrets) visibly consistent with the backend while the
// operator interacts with forms and modals. This package is where that
// consistency is enforced. Pages declare the queries they need; the cache
// issues fetchers, dedupes concurrent requests, serves stale data while
// revalidating, and pushes settlements back to subscribers.
//
// # Core Types
//
//   - Key: ordered tuple of segments identifying one cacheable query.
//     Equality is structural; two queries with equal keys share one entry.
//   - Cache: owns every entry's lifetime. Subscribe registers interest and
//     returns the current snapshot plus a live-update channel; Invalidate
//     marks entries stale by key prefix and refetches subscribed ones.
//   - FanOut: derives a set of per-element subscriptions from a mutable
//     selection set, with an enablement gate.
//   - Mutation: pending/success/error lifecycle around a state-changing
//     request, invalidating declared key prefixes on success.
//
// # Ordering
//
// Each entry counts issued fetches. A settlement is applied only while its
// sequence number is still the latest issued for the key, so the cache
// always reflects the most recently issued fetch's outcome even when
// responses complete out of order. Unsubscribing does not abort an
// in-flight request; the sequence check simply discards a result that no
// longer matters.
//
// # Staleness and Polling
//
// An entry younger than Options.StaleAfter is served from cache without a
// network call. Once older, the next subscription triggers a background
// refetch while the last good data keeps rendering. When
// Options.RefetchInterval is set, a goroutine refetches at that cadence for
// as long as the key has subscribers; the goroutine is stopped
// deterministically when the last subscriber closes its subscription.
//
// # Failure Semantics
//
// A failed fetch moves the entry to StatusError with the typed error
// retained but does not clear previously cached data, so consumers can
// show stale rows under an error banner. Mutation failures are classified
// into Tags (validation, conflict, expired, transport, schema, unknown) by
// a per-mutation classifier; callers branch on the tag, never on message
// text.
//
// # Concurrency Model
//
// Cache state is mutated only under one mutex, by fetch settlement and by
// the public entry points; subscribers observe settlements atomically via
// capacity-one coalescing channels (latest result wins). Fetchers run in
// goroutines bound to the context passed to NewCache.
package query
