// Package app wires the stride components together: configuration,
// preferences, the walk:ai client with its restored session cookie, the
// query cache, and the terminal UI.
package app
