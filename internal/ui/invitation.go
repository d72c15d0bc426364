package ui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/walkai/stride/internal/query"
	"github.com/walkai/stride/internal/walkai"
)

type invitePhase int

const (
	inviteVerifying invitePhase = iota
	inviteReady
	inviteExpired
	inviteFailed
)

// inviteState drives the invitation acceptance flow. The token is verified
// once at startup; acceptance sets the initial password.
type inviteState struct {
	token     string
	phase     invitePhase
	email     string
	password  textinput.Model
	confirm   textinput.Model
	focus     int // 0 = password, 1 = confirm
	accepting bool
	errText   string
	failText  string
	oauthURL  string
}

func newInviteState(token string) inviteState {
	password := textinput.New()
	password.Placeholder = "password (min 8 characters)"
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'
	password.CharLimit = 128
	password.Width = 40

	confirm := textinput.New()
	confirm.Placeholder = "confirm password"
	confirm.EchoMode = textinput.EchoPassword
	confirm.EchoCharacter = '•'
	confirm.CharLimit = 128
	confirm.Width = 40

	return inviteState{token: token, phase: inviteVerifying, password: password, confirm: confirm}
}

// verifyDoneMsg carries the invitation verification outcome.
type verifyDoneMsg struct {
	email string
	err   error
}

// acceptDoneMsg carries the acceptance outcome with its failure class.
type acceptDoneMsg struct {
	err error
	tag query.Tag
}

func (m Model) verifyInvitationCmd() tea.Cmd {
	client := m.client
	ctx := m.ctx
	token := m.invite.token
	return func() tea.Msg {
		email, err := client.VerifyInvitation(ctx, token)
		return verifyDoneMsg{email: email, err: err}
	}
}

func (m Model) handleVerifyDone(msg verifyDoneMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		if walkai.StatusOf(msg.err) == 400 {
			m.invite.phase = inviteExpired
			m.invite.failText = "This invitation link has expired or is no longer valid."
		} else {
			m.invite.phase = inviteFailed
			m.invite.failText = walkai.DetailOf(msg.err, "Could not verify the invitation.")
		}
		return m, nil
	}
	m.invite.phase = inviteReady
	m.invite.email = msg.email
	m.invite.focus = 0
	return m, m.invite.password.Focus()
}

func (m Model) handleInvitationKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.invite.phase {
	case inviteVerifying:
		return m, nil

	case inviteExpired, inviteFailed:
		switch msg.String() {
		case "enter", "esc":
			return m.inviteToLogin("")
		}
		return m, nil
	}

	// inviteReady
	switch msg.String() {
	case "tab", "down":
		return m.focusInviteField((m.invite.focus + 1) % 2)
	case "shift+tab", "up":
		return m.focusInviteField((m.invite.focus + 1) % 2)
	case "enter":
		if m.invite.focus == 0 {
			return m.focusInviteField(1)
		}
		return m.submitAccept()
	case "ctrl+g":
		if m.invite.accepting {
			return m, nil
		}
		m.invite.errText = ""
		return m, m.oauthCmd("invitation", m.invite.token)
	case "esc":
		m.invite.errText = ""
		return m, nil
	}

	if m.invite.accepting {
		return m, nil
	}

	var cmd tea.Cmd
	if m.invite.focus == 0 {
		m.invite.password, cmd = m.invite.password.Update(msg)
	} else {
		m.invite.confirm, cmd = m.invite.confirm.Update(msg)
	}
	return m, cmd
}

func (m Model) focusInviteField(focus int) (tea.Model, tea.Cmd) {
	m.invite.focus = focus
	if focus == 0 {
		m.invite.confirm.Blur()
		return m, m.invite.password.Focus()
	}
	m.invite.password.Blur()
	return m, m.invite.confirm.Focus()
}

func (m Model) submitAccept() (tea.Model, tea.Cmd) {
	if m.invite.accepting {
		return m, nil
	}
	password := m.invite.password.Value()
	confirm := m.invite.confirm.Value()
	if len(password) < 8 {
		m.invite.errText = "Password must be at least 8 characters."
		return m, nil
	}
	if password != confirm {
		m.invite.errText = "Passwords do not match."
		return m, nil
	}

	m.invite.accepting = true
	m.invite.errText = ""

	client := m.client
	cache := m.cache
	ctx := m.ctx
	token := m.invite.token
	return m, func() tea.Msg {
		mut := query.NewMutation(cache).WithClassifier(func(err error) query.Tag {
			switch walkai.StatusOf(err) {
			case 400:
				return query.TagExpired
			case 409:
				return query.TagConflict
			}
			return walkai.ErrorTag(err)
		})
		err := mut.Run(ctx, func(ctx context.Context) error {
			return client.AcceptInvitation(ctx, token, password)
		})
		return acceptDoneMsg{err: err, tag: mut.Tag()}
	}
}

func (m Model) handleAcceptDone(msg acceptDoneMsg) (tea.Model, tea.Cmd) {
	m.invite.accepting = false
	if msg.err == nil {
		return m.inviteToLogin("Account created. Sign in with your new password.")
	}
	switch msg.tag {
	case query.TagExpired:
		m.invite.phase = inviteExpired
		m.invite.failText = walkai.DetailOf(msg.err, "This invitation has expired.")
	case query.TagConflict:
		m.invite.errText = walkai.DetailOf(msg.err, "This invitation was already used.")
	default:
		m.invite.errText = walkai.DetailOf(msg.err, "Could not create the account.")
	}
	return m, nil
}

// inviteToLogin leaves the invitation flow for the credential form.
func (m Model) inviteToLogin(notice string) (tea.Model, tea.Cmd) {
	email := m.invite.email
	m.screen = screenLogin
	m.invite = inviteState{}
	m.login = newLoginState()
	m.login.notice = notice
	var cmds []tea.Cmd
	if guard := m.ensureGuard(); guard != nil {
		cmds = append(cmds, guard)
	}
	if email != "" {
		m.login.email.SetValue(email)
		m.login.focus = 1
		cmds = append(cmds, m.login.password.Focus())
	} else {
		cmds = append(cmds, m.login.email.Focus())
	}
	return m, tea.Batch(cmds...)
}

func (m Model) renderInvitation() string {
	s := m.styles
	var b strings.Builder

	b.WriteString("\n  " + s.Logo.Render("stride") + "  " + s.MutedText.Render("walk:ai operator console") + "\n\n")

	switch m.invite.phase {
	case inviteVerifying:
		b.WriteString("  " + s.InfoText.Render("Verifying invitation...") + "\n")

	case inviteExpired:
		b.WriteString("  " + s.WarningText.Render(m.invite.failText) + "\n")
		b.WriteString("\n  " + s.FaintText.Render("enter: go to sign in") + "\n")

	case inviteFailed:
		b.WriteString("  " + s.DangerText.Render(m.invite.failText) + "\n")
		b.WriteString("\n  " + s.FaintText.Render("enter: go to sign in") + "\n")

	case inviteReady:
		b.WriteString("  " + s.Text.Render("You have been invited as ") + s.AccentText.Render(m.invite.email) + "\n\n")
		b.WriteString("  " + m.renderLoginField("Password", m.invite.password, m.invite.focus == 0) + "\n")
		b.WriteString("  " + m.renderLoginField("Confirm", m.invite.confirm, m.invite.focus == 1) + "\n\n")
		if m.invite.accepting {
			b.WriteString("  " + s.InfoText.Render("Creating account...") + "\n")
		}
		if m.invite.errText != "" {
			b.WriteString("  " + s.DangerText.Render(m.invite.errText) + "\n")
		}
		if m.invite.oauthURL != "" {
			b.WriteString("\n  " + s.Text.Render("Or open this URL to join with GitHub:") + "\n")
			b.WriteString("  " + s.AccentText.Render(m.invite.oauthURL) + "\n")
		}
		b.WriteString("\n  " + s.FaintText.Render("enter: create account · ctrl+g: GitHub · ctrl+c: quit") + "\n")
	}

	return b.String()
}
