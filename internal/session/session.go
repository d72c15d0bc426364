// Package session persists the walk:ai session cookie in the OS keychain so
// a login survives console restarts. The session model stays cookie-only;
// the keychain simply plays the role a browser's cookie store would.
package session

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const (
	service = "stride"
	account = "session"
)

// Save stores the session cookie value in the keychain.
func Save(value string) error {
	if value == "" {
		return fmt.Errorf("empty session cookie")
	}
	if err := keyring.Set(service, account, value); err != nil {
		return fmt.Errorf("store session cookie: %w", err)
	}
	return nil
}

// Load returns the persisted session cookie value. A missing entry is not
// an error; it returns ok=false.
func Load() (value string, ok bool, err error) {
	value, err = keyring.Get(service, account)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read session cookie: %w", err)
	}
	return value, value != "", nil
}

// Clear removes the persisted session cookie. Clearing an absent entry is a
// no-op.
func Clear() error {
	if err := keyring.Delete(service, account); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("clear session cookie: %w", err)
	}
	return nil
}
