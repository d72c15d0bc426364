package ui

import (
	"context"
	"log"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/walkai/stride/internal/query"
	"github.com/walkai/stride/internal/session"
	"github.com/walkai/stride/internal/walkai"
)

// guardState gates the main screen on a valid session. The probe subscribes
// to the session key once; a failed probe drops to the login screen exactly
// once, so later background failures cannot yank the user out of a form.
type guardState struct {
	sub        *query.Subscription
	user       *walkai.User
	triedLogin bool
}

func startGuard(cache *query.Cache, client *walkai.Client) guardState {
	sub, _ := cache.Subscribe(keySession, func(ctx context.Context) (any, error) {
		return client.FetchSession(ctx)
	}, query.Options{StaleAfter: 5 * time.Minute})
	return guardState{sub: sub}
}

// ensureGuard lazily starts the session probe for flows that began without
// one, such as invitation acceptance.
func (m *Model) ensureGuard() tea.Cmd {
	if m.guard.sub != nil {
		return nil
	}
	m.guard = startGuard(m.cache, m.client)
	m.guard.triedLogin = true
	return waitResult(m.guard.sub)
}

// handleSessionResult reacts to session probe updates.
func (m Model) handleSessionResult(msg resultMsg) (tea.Model, tea.Cmd) {
	rearm := waitResult(msg.sub)

	switch msg.res.Status {
	case query.StatusSuccess:
		user, ok := msg.res.Data.(walkai.User)
		if !ok {
			return m, rearm
		}
		m.guard.user = &user
		if m.screen == screenChecking || m.screen == screenLogin {
			var cmds []tea.Cmd
			cmds = append(cmds, rearm)
			if cmd := m.enterMain(); cmd != nil {
				cmds = append(cmds, cmd)
			}
			return m, tea.Batch(cmds...)
		}
		return m, rearm

	case query.StatusError:
		if !m.guard.triedLogin && m.screen == screenChecking {
			m.guard.triedLogin = true
			m.screen = screenLogin
			m.login = newLoginState()
			return m, tea.Batch(rearm, m.login.email.Focus())
		}
		if m.screen == screenLogin && m.login.submitting {
			// The login mutation surfaces its own error; the probe result
			// here is just the refetch racing it.
			return m, rearm
		}
		return m, rearm
	}

	return m, rearm
}

// enterMain switches to the main screen and starts the jobs subscription.
func (m *Model) enterMain() tea.Cmd {
	m.screen = screenMain
	m.tab = tabJobs
	if m.jobs.sub != nil {
		return nil
	}
	client := m.client
	sub, cur := m.cache.Subscribe(keyJobs, func(ctx context.Context) (any, error) {
		return client.FetchJobs(ctx)
	}, query.Options{StaleAfter: m.pollTick, RefetchInterval: m.pollTick})
	m.jobs.sub = sub
	m.jobs.res = cur
	if m.ready {
		m.initJobsTable()
		m.refreshJobsTable()
	}
	return waitResult(sub)
}

// leaveMain tears down every main-screen subscription.
func (m *Model) leaveMain() {
	m.closeRegistry()
	m.closeForm()
	if m.jobs.sub != nil {
		m.jobs.sub.Close()
		m.jobs.sub = nil
		m.jobs.res = query.Result{}
	}
	m.jobs.banner = ""
	m.users = usersState{}
}

// logoutDoneMsg signals that the logout round trip finished.
type logoutDoneMsg struct{}

// logoutCmd ends the session. The server call is best effort; the local
// cookie and keychain entry are always cleared.
func (m Model) logoutCmd() tea.Cmd {
	client := m.client
	ctx := m.ctx
	return func() tea.Msg {
		if err := client.Logout(ctx); err != nil {
			log.Printf("logout request failed: %v", err)
		}
		client.ClearSession()
		_ = session.Clear()
		return logoutDoneMsg{}
	}
}

func (m Model) handleLogoutDone() (tea.Model, tea.Cmd) {
	m.leaveMain()
	m.guard.user = nil
	m.guard.triedLogin = true
	m.screen = screenLogin
	m.login = newLoginState()
	m.login.notice = "Signed out."
	m.cache.Invalidate(keySession)
	return m, m.login.email.Focus()
}
