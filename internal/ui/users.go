package ui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/walkai/stride/internal/query"
	"github.com/walkai/stride/internal/walkai"
)

// usersState is the admin page: the signed-in account plus the invite modal.
type usersState struct {
	inviteOpen bool
	email      textinput.Model
	sending    bool
	errText    string
	notice     string
}

// inviteSendDoneMsg carries the create-invitation outcome.
type inviteSendDoneMsg struct {
	email string
	err   error
}

func (m Model) openInvite() (tea.Model, tea.Cmd) {
	email := textinput.New()
	email.Placeholder = "email to invite"
	email.CharLimit = 254
	email.Width = 40

	m.users.inviteOpen = true
	m.users.email = email
	m.users.errText = ""
	return m, m.users.email.Focus()
}

func (m Model) handleInviteKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.users.sending {
		// No closing or editing until the invitation round trip settles.
		return m, nil
	}

	switch msg.String() {
	case "esc":
		m.users.inviteOpen = false
		m.users.errText = ""
		return m, nil
	case "enter":
		return m.sendInvite()
	}

	var cmd tea.Cmd
	m.users.email, cmd = m.users.email.Update(msg)
	return m, cmd
}

func (m Model) sendInvite() (tea.Model, tea.Cmd) {
	email := strings.TrimSpace(m.users.email.Value())
	if email == "" || !strings.Contains(email, "@") {
		m.users.errText = "Enter a valid email address."
		return m, nil
	}

	m.users.sending = true
	m.users.errText = ""

	client := m.client
	cache := m.cache
	ctx := m.ctx
	return m, func() tea.Msg {
		mut := query.NewMutation(cache)
		err := mut.Run(ctx, func(ctx context.Context) error {
			return client.CreateInvitation(ctx, email)
		})
		return inviteSendDoneMsg{email: email, err: err}
	}
}

func (m Model) handleInviteSendDone(msg inviteSendDoneMsg) (tea.Model, tea.Cmd) {
	m.users.sending = false
	if msg.err != nil {
		m.users.errText = walkai.DetailOf(msg.err, "Could not send the invitation.")
		return m, nil
	}
	m.users.inviteOpen = false
	m.users.notice = "Invitation sent to " + msg.email + "."
	return m, nil
}

func (m Model) renderUsers() string {
	s := m.styles
	var b strings.Builder

	b.WriteString("\n " + s.AccentText.Render("Account") + "\n\n")
	if user := m.guard.user; user != nil {
		b.WriteString(" " + s.MutedText.Render(padRight("Email", 8)) + s.Text.Render(user.Email) + "\n")
	}

	if m.users.notice != "" {
		b.WriteString("\n " + s.SuccessText.Render(m.users.notice) + "\n")
	}

	b.WriteString("\n " + s.FaintText.Render("n: invite user · q: jobs") + "\n")
	return b.String()
}

func (m Model) renderInviteModal() string {
	s := m.styles
	var b strings.Builder

	b.WriteString("\n  " + s.AccentText.Render("Invite user") + "\n\n")
	b.WriteString("  " + m.users.email.View() + "\n")

	if m.users.sending {
		b.WriteString("\n  " + s.InfoText.Render("Sending invitation...") + "\n")
	}
	if m.users.errText != "" {
		b.WriteString("\n  " + s.DangerText.Render(m.users.errText) + "\n")
	}

	b.WriteString("\n  " + s.FaintText.Render("enter: send · esc: cancel") + "\n")
	return b.String()
}
