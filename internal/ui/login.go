package ui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/walkai/stride/internal/query"
	"github.com/walkai/stride/internal/session"
	"github.com/walkai/stride/internal/walkai"
)

// loginState holds the credential form.
type loginState struct {
	email      textinput.Model
	password   textinput.Model
	focus      int // 0 = email, 1 = password
	submitting bool
	errText    string
	notice     string
	oauthURL   string
}

func newLoginState() loginState {
	email := textinput.New()
	email.Placeholder = "email"
	email.CharLimit = 254
	email.Width = 40

	password := textinput.New()
	password.Placeholder = "password"
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'
	password.CharLimit = 128
	password.Width = 40

	return loginState{email: email, password: password}
}

// loginDoneMsg signals that the login mutation settled.
type loginDoneMsg struct {
	err error
}

// oauthDoneMsg carries the GitHub authorize URL, or the failure to get one.
type oauthDoneMsg struct {
	url string
	err error
}

func (m Model) handleLoginKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "tab", "down":
		return m.focusLoginField((m.login.focus + 1) % 2)
	case "shift+tab", "up":
		return m.focusLoginField((m.login.focus + 1) % 2)
	case "enter":
		if m.login.focus == 0 {
			return m.focusLoginField(1)
		}
		return m.submitLogin()
	case "ctrl+g":
		if m.login.submitting {
			return m, nil
		}
		m.login.errText = ""
		return m, m.oauthCmd("login", "")
	case "esc":
		m.login.errText = ""
		return m, nil
	}

	if m.login.submitting {
		return m, nil
	}

	var cmd tea.Cmd
	if m.login.focus == 0 {
		m.login.email, cmd = m.login.email.Update(msg)
	} else {
		m.login.password, cmd = m.login.password.Update(msg)
	}
	return m, cmd
}

func (m Model) focusLoginField(focus int) (tea.Model, tea.Cmd) {
	m.login.focus = focus
	if focus == 0 {
		m.login.password.Blur()
		return m, m.login.email.Focus()
	}
	m.login.email.Blur()
	return m, m.login.password.Focus()
}

func (m Model) submitLogin() (tea.Model, tea.Cmd) {
	if m.login.submitting {
		return m, nil
	}
	email := strings.TrimSpace(m.login.email.Value())
	password := m.login.password.Value()
	if email == "" || password == "" {
		m.login.errText = "Email and password are required."
		return m, nil
	}

	m.login.submitting = true
	m.login.errText = ""
	m.login.notice = ""

	client := m.client
	cache := m.cache
	ctx := m.ctx
	return m, func() tea.Msg {
		mut := query.NewMutation(cache, keySession)
		err := mut.Run(ctx, func(ctx context.Context) error {
			return client.Login(ctx, email, password)
		})
		return loginDoneMsg{err: err}
	}
}

func (m Model) handleLoginDone(msg loginDoneMsg) (tea.Model, tea.Cmd) {
	m.login.submitting = false
	if msg.err != nil {
		m.login.errText = walkai.DetailOf(msg.err, "Sign in failed.")
		return m, nil
	}

	// Keep the cookie for the next run. Failure only costs persistence.
	if value, ok := m.client.SessionCookie(); ok {
		_ = session.Save(value)
	}
	m.login.password.SetValue("")
	m.login.notice = "Signed in."
	// The session invalidation already queued a refetch; its success result
	// moves us to the main screen.
	return m, m.ensureGuard()
}

func (m Model) oauthCmd(flow, invitationToken string) tea.Cmd {
	client := m.client
	ctx := m.ctx
	return func() tea.Msg {
		url, err := client.StartGitHubOAuth(ctx, flow, invitationToken)
		return oauthDoneMsg{url: url, err: err}
	}
}

func (m Model) handleOAuthDone(msg oauthDoneMsg) (tea.Model, tea.Cmd) {
	if m.screen == screenInvitation {
		if msg.err != nil {
			m.invite.errText = walkai.DetailOf(msg.err, "GitHub sign-in is unavailable.")
		} else {
			m.invite.oauthURL = msg.url
		}
		return m, nil
	}
	if msg.err != nil {
		m.login.errText = walkai.DetailOf(msg.err, "GitHub sign-in is unavailable.")
	} else {
		m.login.oauthURL = msg.url
	}
	return m, nil
}

func (m Model) renderLogin() string {
	s := m.styles
	var b strings.Builder

	b.WriteString("\n  " + s.Logo.Render("stride") + "  " + s.MutedText.Render("walk:ai operator console") + "\n\n")

	if m.login.notice != "" {
		b.WriteString("  " + s.SuccessText.Render(m.login.notice) + "\n\n")
	}

	b.WriteString("  " + m.renderLoginField("Email", m.login.email, m.login.focus == 0) + "\n")
	b.WriteString("  " + m.renderLoginField("Password", m.login.password, m.login.focus == 1) + "\n\n")

	if m.login.submitting {
		b.WriteString("  " + s.InfoText.Render("Signing in...") + "\n")
	}
	if m.login.errText != "" {
		b.WriteString("  " + s.DangerText.Render(m.login.errText) + "\n")
	}
	if m.login.oauthURL != "" {
		b.WriteString("\n  " + s.Text.Render("Open this URL to continue with GitHub:") + "\n")
		b.WriteString("  " + s.AccentText.Render(m.login.oauthURL) + "\n")
	}

	b.WriteString("\n  " + s.FaintText.Render("enter: sign in · ctrl+g: GitHub · ctrl+c: quit") + "\n")
	return b.String()
}

func (m Model) renderLoginField(label string, input textinput.Model, focused bool) string {
	s := m.styles
	labelStyle := s.MutedText
	if focused {
		labelStyle = s.AccentText
	}
	return labelStyle.Render(padRight(label, 10)) + input.View()
}
