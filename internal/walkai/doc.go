// Package walkai provides the typed HTTP client for the walk:ai backend.
//
// # Overview
//
// This package owns the trust boundary between stride and the backend. Each
// resource (session, jobs, registry images, secrets, invitations, GitHub
// OAuth) has one request/response method that performs a single call,
// validates the payload structurally, and returns a typed value or a typed
// failure. No method retries; retry and refresh policy belong to the query
// cache and mutation runner.
//
// # Error Taxonomy
//
// Failures come in exactly two shapes at this layer:
//
//   - TransportError: network failure or a non-2xx status. Carries the
//     status code and the backend's "detail" message, which may arrive as
//     a plain string or as a list of {msg} validation objects.
//   - SchemaError: a 2xx response whose body failed structural validation.
//
// Semantic reinterpretation of statuses (a 400 on invitation accept means
// "expired", a 409 means "conflict") happens in the pages, via StatusOf and
// DetailOf, not here.
//
// # Validation
//
// Wire structs decode with pointer fields so required-field presence is
// checked explicitly; conversion to the exported types rejects any payload
// missing a required field or carrying the wrong shape. Declared types are
// deliberately not trusted: the backend is an external service whose
// payloads are not statically enforced.
//
// # Sessions
//
// The backend issues a cookie on login; the client's jar sends it on every
// request. SessionCookie/SetSessionCookie exist so the app layer can
// persist that cookie in the OS keychain between runs.
package walkai
