// Package ui provides the Bubble Tea-based TUI for stride.
package ui

import (
	"context"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/walkai/stride/internal/config"
	"github.com/walkai/stride/internal/prefs"
	"github.com/walkai/stride/internal/query"
	"github.com/walkai/stride/internal/walkai"
)

// screen is the top-level UI state.
type screen int

const (
	screenChecking screen = iota
	screenInvitation
	screenLogin
	screenMain
)

// mainTab selects the active page inside the main screen.
type mainTab int

const (
	tabJobs mainTab = iota
	tabUsers
)

// Cache keys. Invalidation is prefix-based, so ("jobs") covers both the list
// and the registry catalog.
var (
	keySession      = query.NewKey("session")
	keyJobs         = query.NewKey("jobs", "list")
	keyJobImages    = query.NewKey("jobs", "images")
	keySecrets      = query.NewKey("secrets", "list")
	keySecretDetail = query.NewKey("secrets", "detail")
)

const (
	catalogStale  = 60 * time.Second
	successBanner = 4 * time.Second
)

// Options configures the UI.
type Options struct {
	Context         context.Context
	Client          *walkai.Client
	Cache           *query.Cache
	Config          *config.Config
	PollTick        time.Duration
	ThemeName       string
	DefaultGPU      string
	PrefsPath       string
	InvitationToken string
}

// Model is the root application state for Bubble Tea.
type Model struct {
	// Configuration
	ctx        context.Context
	client     *walkai.Client
	cache      *query.Cache
	config     *config.Config
	prefsPath  string
	pollTick   time.Duration
	defaultGPU string

	// UI state
	theme  Theme
	styles Styles
	width  int
	height int
	ready  bool

	screen screen
	tab    mainTab

	guard  guardState
	login  loginState
	invite inviteState
	jobs   jobsState
	users  usersState

	showHelp bool
}

// New creates a new Bubble Tea model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}

	pollTick := opts.PollTick
	if pollTick == 0 {
		pollTick = 5 * time.Second
	}

	themeName := opts.ThemeName
	if themeName == "" {
		themeName = "Dracula"
	}

	prefsPath := opts.PrefsPath
	if prefsPath == "" {
		prefsPath = prefs.DefaultPath()
	}

	defaultGPU := opts.DefaultGPU
	if defaultGPU == "" {
		defaultGPU = walkai.DefaultGPUProfile
	}

	theme := GetTheme(themeName)

	m := Model{
		ctx:        ctx,
		client:     opts.Client,
		cache:      opts.Cache,
		config:     opts.Config,
		prefsPath:  prefsPath,
		pollTick:   pollTick,
		defaultGPU: defaultGPU,
		theme:      theme,
		styles:     theme.Styles(),
		screen:     screenChecking,
		tab:        tabJobs,
	}
	m.login = newLoginState()
	if opts.InvitationToken != "" {
		m.screen = screenInvitation
		m.invite = newInviteState(opts.InvitationToken)
	} else {
		m.guard = startGuard(m.cache, m.client)
	}
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		tea.EnterAltScreen,
		tickCmd(),
	}
	if m.screen == screenInvitation {
		cmds = append(cmds, m.verifyInvitationCmd())
	} else if m.guard.sub != nil {
		cmds = append(cmds, waitResult(m.guard.sub))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if !m.ready {
			m.initJobsTable()
		}
		m.ready = true
		m.layoutJobsTable()
		return m, nil

	case tickMsg:
		if m.jobs.banner != "" && time.Now().After(m.jobs.bannerUntil) {
			m.jobs.banner = ""
		}
		return m, tickCmd()

	case resultMsg:
		return m.handleResult(msg)

	case fanOutMsg:
		if msg.fan == m.jobs.form.secretFan && msg.fan != nil {
			return m, waitFanOut(msg.fan)
		}
		return m, nil

	case loginDoneMsg:
		return m.handleLoginDone(msg)

	case oauthDoneMsg:
		return m.handleOAuthDone(msg)

	case verifyDoneMsg:
		return m.handleVerifyDone(msg)

	case acceptDoneMsg:
		return m.handleAcceptDone(msg)

	case submitDoneMsg:
		return m.handleSubmitDone(msg)

	case inviteSendDoneMsg:
		return m.handleInviteSendDone(msg)

	case logoutDoneMsg:
		return m.handleLogoutDone()
	}

	return m, nil
}

// handleResult routes cache updates to the owning page.
func (m Model) handleResult(msg resultMsg) (tea.Model, tea.Cmd) {
	switch msg.sub {
	case m.guard.sub:
		return m.handleSessionResult(msg)
	case m.jobs.sub:
		m.jobs.res = msg.res
		m.refreshJobsTable()
		return m, waitResult(msg.sub)
	case m.jobs.registry.sub:
		m.jobs.registry.res = msg.res
		return m, waitResult(msg.sub)
	case m.jobs.form.secretsSub:
		m.jobs.form.secretsRes = msg.res
		return m, waitResult(msg.sub)
	}
	// Update for a subscription that was closed since; drop it.
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	if m.showHelp {
		return m.renderHelp()
	}

	switch m.screen {
	case screenChecking:
		return m.renderChecking()
	case screenLogin:
		return m.renderLogin()
	case screenInvitation:
		return m.renderInvitation()
	default:
		return m.renderMain()
	}
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	if m.showHelp {
		// Any key closes help
		m.showHelp = false
		return m, nil
	}

	switch m.screen {
	case screenLogin:
		return m.handleLoginKey(msg)
	case screenInvitation:
		return m.handleInvitationKey(msg)
	case screenChecking:
		return m, nil
	}

	// Main screen overlays capture input first.
	if m.jobs.showRegistry {
		return m.handleRegistryKey(msg)
	}
	if m.jobs.showForm {
		return m.handleFormKey(msg)
	}
	if m.users.inviteOpen {
		return m.handleInviteKey(msg)
	}

	switch msg.String() {
	case "e":
		return m, tea.Quit

	case "?", "h":
		m.showHelp = true
		return m, nil

	case "T":
		m.cycleTheme()
		return m, nil

	case "j", "k", "down", "up", "g", "G", "home", "end":
		if m.tab == tabJobs {
			return m.handleJobsKey(msg)
		}
		return m, nil

	case "tab":
		if m.tab == tabJobs {
			m.tab = tabUsers
		} else {
			m.tab = tabJobs
		}
		return m, nil

	case "u":
		m.tab = tabUsers
		return m, nil

	case "q":
		m.tab = tabJobs
		return m, nil

	case "n":
		if m.tab == tabJobs {
			return m.openForm()
		}
		if m.tab == tabUsers {
			return m.openInvite()
		}
		return m, nil

	case "r":
		m.cache.Invalidate(keyJobs)
		return m, nil

	case "L":
		return m, m.logoutCmd()

	case "esc":
		m.tab = tabJobs
		return m, nil
	}

	return m, nil
}

// cycleTheme advances the theme and persists the choice.
func (m *Model) cycleTheme() {
	m.theme = GetTheme(NextTheme(m.theme.Name))
	m.styles = m.theme.Styles()
	m.restyleJobsTable()
	if m.prefsPath != "" {
		saved := prefs.Load(m.prefsPath)
		saved.Theme = m.theme.Name
		_ = prefs.Save(m.prefsPath, saved)
	}
}

// renderMain renders the main screen.
func (m Model) renderMain() string {
	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderCommandBar())
	b.WriteString("\n")

	switch {
	case m.jobs.showRegistry:
		b.WriteString(m.renderRegistry())
	case m.jobs.showForm:
		b.WriteString(m.renderForm())
	case m.users.inviteOpen:
		b.WriteString(m.renderInviteModal())
	case m.tab == tabUsers:
		b.WriteString(m.renderUsers())
	default:
		b.WriteString(m.renderJobs())
	}

	return b.String()
}

// renderChecking is shown while the session probe is in flight.
func (m Model) renderChecking() string {
	return "\n  " + m.styles.Logo.Render("stride") + "\n\n  " +
		m.styles.MutedText.Render("Checking session...") + "\n"
}

// Messages

type tickMsg time.Time

// tickCmd drives relative timestamps and banner expiry.
func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Run starts the Bubble Tea program.
func Run(opts Options) error {
	m := New(opts)
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
