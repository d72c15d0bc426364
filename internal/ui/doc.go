// Package ui implements the stride terminal interface with Bubble Tea.
//
// The UI follows the Elm architecture: a single Model holds all state,
// Update consumes messages, View renders. Remote data never lives in the
// Model directly; each page subscribes to the query cache and receives
// Result snapshots over its subscription channel, bridged into the message
// loop by waitResult. Mutations run as commands that settle into typed
// done-messages.
//
// Screens:
//
//   - checking: the session probe is in flight.
//   - login: email/password form, plus the GitHub authorize URL flow.
//   - invitation: token verification and account creation, entered only
//     when stride is started with -invitation.
//   - main: the jobs page (list, submission form, registry browser) and
//     the users page (account, invitations).
//
// Theme handling follows the palette table in theme.go; the selected theme
// persists via the prefs package.
package ui
