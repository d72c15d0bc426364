package ui

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/walkai/stride/internal/prefs"
	"github.com/walkai/stride/internal/query"
	"github.com/walkai/stride/internal/walkai"
)

// Form focus slots, top to bottom.
const (
	formFocusImage = iota
	formFocusGPU
	formFocusStorage
	formFocusSecrets
	formFocusSubmit
	formFocusCount
)

// formState is the job submission modal. It is rebuilt on every open so a
// cancelled draft never leaks into the next one.
type formState struct {
	image   textinput.Model
	storage textinput.Model
	gpuIdx  int

	focus        int
	secretCursor int
	selected     map[string]bool

	secretsSub *query.Subscription
	secretsRes query.Result
	secretFan  *query.FanOut

	submitting bool
	errText    string
}

func newFormState(defaultGPU string) formState {
	image := textinput.New()
	image.Placeholder = "registry image reference"
	image.CharLimit = 256
	image.Width = 48

	storage := textinput.New()
	storage.Placeholder = "GB"
	storage.CharLimit = 5
	storage.Width = 8
	storage.SetValue("10")

	gpuIdx := 0
	for i, p := range walkai.GPUProfiles {
		if p == defaultGPU {
			gpuIdx = i
		}
	}

	return formState{
		image:    image,
		storage:  storage,
		gpuIdx:   gpuIdx,
		selected: make(map[string]bool),
	}
}

// submitDoneMsg carries the create-job outcome.
type submitDoneMsg struct {
	err error
}

// openForm resets and shows the submission modal, subscribing to the secret
// catalog and enabling the per-secret detail fan-out.
func (m Model) openForm() (tea.Model, tea.Cmd) {
	fan := m.jobs.form.secretFan
	m.jobs.form = newFormState(m.defaultGPU)
	m.jobs.showForm = true

	client := m.client
	sub, cur := m.cache.Subscribe(keySecrets, func(ctx context.Context) (any, error) {
		return client.FetchSecrets(ctx)
	}, query.Options{StaleAfter: catalogStale})
	m.jobs.form.secretsSub = sub
	m.jobs.form.secretsRes = cur

	cmds := []tea.Cmd{waitResult(sub), m.jobs.form.image.Focus()}
	if fan == nil {
		fan = query.NewFanOut(m.cache, keySecretDetail, query.Options{StaleAfter: catalogStale},
			func(element string) query.Fetcher {
				return func(ctx context.Context) (any, error) {
					return client.FetchSecretDetail(ctx, element)
				}
			})
		cmds = append(cmds, waitFanOut(fan))
	}
	fan.Sync(nil)
	fan.SetEnabled(true)
	m.jobs.form.secretFan = fan
	return m, tea.Batch(cmds...)
}

// closeForm hides the modal. The fan-out survives disabled so its selection
// gate and waiter can be reused by the next open.
func (m *Model) closeForm() {
	if !m.jobs.showForm {
		return
	}
	if m.jobs.form.secretsSub != nil {
		m.jobs.form.secretsSub.Close()
		m.jobs.form.secretsSub = nil
	}
	if m.jobs.form.secretFan != nil {
		m.jobs.form.secretFan.SetEnabled(false)
	}
	m.jobs.showForm = false
}

func (m Model) handleFormKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.jobs.form.submitting {
		// The modal is inert until the mutation settles.
		return m, nil
	}

	switch msg.String() {
	case "esc":
		m.closeForm()
		return m, nil
	case "tab":
		return m.focusFormField((m.jobs.form.focus + 1) % formFocusCount)
	case "shift+tab":
		return m.focusFormField((m.jobs.form.focus + formFocusCount - 1) % formFocusCount)
	case "ctrl+b":
		return m.openRegistry()
	case "enter":
		if m.jobs.form.focus == formFocusSubmit {
			return m.submitJob()
		}
		return m.focusFormField(m.jobs.form.focus + 1)
	}

	switch m.jobs.form.focus {
	case formFocusImage:
		var cmd tea.Cmd
		m.jobs.form.image, cmd = m.jobs.form.image.Update(msg)
		return m, cmd

	case formFocusGPU:
		switch msg.String() {
		case "left", "h":
			m.jobs.form.gpuIdx = (m.jobs.form.gpuIdx + len(walkai.GPUProfiles) - 1) % len(walkai.GPUProfiles)
		case "right", "l", " ":
			m.jobs.form.gpuIdx = (m.jobs.form.gpuIdx + 1) % len(walkai.GPUProfiles)
		}
		return m, nil

	case formFocusStorage:
		var cmd tea.Cmd
		m.jobs.form.storage, cmd = m.jobs.form.storage.Update(msg)
		return m, cmd

	case formFocusSecrets:
		return m.handleSecretsKey(msg)
	}

	return m, nil
}

func (m Model) handleSecretsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	names := m.secretNames()
	switch msg.String() {
	case "up", "k":
		if m.jobs.form.secretCursor > 0 {
			m.jobs.form.secretCursor--
		}
	case "down", "j":
		if m.jobs.form.secretCursor < len(names)-1 {
			m.jobs.form.secretCursor++
		}
	case " ":
		if m.jobs.form.secretCursor < len(names) {
			name := names[m.jobs.form.secretCursor]
			if m.jobs.form.selected[name] {
				delete(m.jobs.form.selected, name)
			} else {
				m.jobs.form.selected[name] = true
			}
			if m.jobs.form.secretFan != nil {
				m.jobs.form.secretFan.Sync(m.selectedSecrets())
			}
		}
	}
	return m, nil
}

func (m Model) focusFormField(focus int) (tea.Model, tea.Cmd) {
	if focus >= formFocusCount {
		focus = formFocusSubmit
	}
	m.jobs.form.focus = focus
	m.jobs.form.image.Blur()
	m.jobs.form.storage.Blur()
	switch focus {
	case formFocusImage:
		return m, m.jobs.form.image.Focus()
	case formFocusStorage:
		return m, m.jobs.form.storage.Focus()
	}
	return m, nil
}

// secretNames returns the attachable secret names from the catalog snapshot.
func (m Model) secretNames() []string {
	secrets, _ := m.jobs.form.secretsRes.Data.([]walkai.SecretSummary)
	names := make([]string, 0, len(secrets))
	for _, s := range secrets {
		names = append(names, s.Name)
	}
	return names
}

// selectedSecrets returns the chosen secret names in stable order.
func (m Model) selectedSecrets() []string {
	names := make([]string, 0, len(m.jobs.form.selected))
	for name := range m.jobs.form.selected {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m Model) submitJob() (tea.Model, tea.Cmd) {
	submission, err := buildSubmission(
		m.jobs.form.image.Value(),
		walkai.GPUProfiles[m.jobs.form.gpuIdx],
		m.jobs.form.storage.Value(),
		m.selectedSecrets(),
	)
	if err != nil {
		m.jobs.form.errText = err.Error()
		return m, nil
	}

	m.jobs.form.submitting = true
	m.jobs.form.errText = ""

	client := m.client
	cache := m.cache
	ctx := m.ctx
	return m, func() tea.Msg {
		mut := query.NewMutation(cache, keyJobs)
		err := mut.Run(ctx, func(ctx context.Context) error {
			return client.CreateJob(ctx, submission)
		})
		return submitDoneMsg{err: err}
	}
}

// buildSubmission validates the form fields into a create-job payload.
func buildSubmission(image, gpu, storage string, secrets []string) (walkai.JobSubmission, error) {
	image = strings.TrimSpace(image)
	if image == "" {
		return walkai.JobSubmission{}, fmt.Errorf("Image is required.")
	}
	gb, err := strconv.Atoi(strings.TrimSpace(storage))
	if err != nil || gb <= 0 {
		return walkai.JobSubmission{}, fmt.Errorf("Storage must be a positive whole number of GB.")
	}
	return walkai.JobSubmission{
		Image:       image,
		GPUProfile:  gpu,
		StorageGB:   gb,
		SecretNames: secrets,
	}, nil
}

func (m Model) handleSubmitDone(msg submitDoneMsg) (tea.Model, tea.Cmd) {
	m.jobs.form.submitting = false
	if msg.err != nil {
		m.jobs.form.errText = walkai.DetailOf(msg.err, "Could not submit the job.")
		return m, nil
	}

	// Remember the chosen profile for the next submission.
	gpu := walkai.GPUProfiles[m.jobs.form.gpuIdx]
	m.defaultGPU = gpu
	if m.prefsPath != "" {
		saved := prefs.Load(m.prefsPath)
		saved.GPUProfile = gpu
		_ = prefs.Save(m.prefsPath, saved)
	}

	m.closeForm()
	m.jobs.banner = "Job submitted."
	m.jobs.bannerUntil = time.Now().Add(successBanner)
	return m, nil
}

func (m Model) renderForm() string {
	s := m.styles
	f := m.jobs.form
	var b strings.Builder

	label := func(text string, focused bool) string {
		style := s.MutedText
		if focused {
			style = s.AccentText
		}
		return style.Render(padRight(text, 10))
	}

	b.WriteString("\n  " + s.AccentText.Render("Submit job") + "\n\n")
	b.WriteString("  " + label("Image", f.focus == formFocusImage) + f.image.View() + "\n")

	gpu := walkai.GPUProfiles[f.gpuIdx]
	gpuValue := s.Text.Render("← " + gpu + " →")
	if f.focus != formFocusGPU {
		gpuValue = s.Text.Render(gpu)
	}
	b.WriteString("  " + label("GPU", f.focus == formFocusGPU) + gpuValue + "\n")
	b.WriteString("  " + label("Storage", f.focus == formFocusStorage) + f.storage.View() + "\n")

	b.WriteString("  " + label("Secrets", f.focus == formFocusSecrets) + "\n")
	b.WriteString(m.renderSecretList())

	submit := s.MutedText.Render("[ Submit ]")
	if f.focus == formFocusSubmit {
		submit = s.Selected.Render("[ Submit ]")
	}
	b.WriteString("\n  " + submit + "\n")

	if f.submitting {
		b.WriteString("\n  " + s.InfoText.Render("Submitting...") + "\n")
	}
	if f.errText != "" {
		b.WriteString("\n  " + s.DangerText.Render(f.errText) + "\n")
	}

	b.WriteString("\n  " + s.FaintText.Render("tab: next field · space: toggle secret · ctrl+b: browse images · esc: cancel") + "\n")
	return b.String()
}

// renderSecretList renders the secret checkboxes with the keys of each
// selected secret once its detail query lands.
func (m Model) renderSecretList() string {
	s := m.styles
	f := m.jobs.form
	var b strings.Builder

	switch {
	case f.secretsRes.Status == query.StatusError && !f.secretsRes.HasData:
		b.WriteString("    " + s.DangerText.Render("Could not load secrets: "+errorLine(f.secretsRes.Err)) + "\n")
		return b.String()
	case !f.secretsRes.HasData:
		b.WriteString("    " + s.MutedText.Render("Loading secrets...") + "\n")
		return b.String()
	}

	names := m.secretNames()
	if len(names) == 0 {
		b.WriteString("    " + s.MutedText.Render("No secrets configured.") + "\n")
		return b.String()
	}

	var details map[string]query.Result
	if f.secretFan != nil {
		details = f.secretFan.Snapshot()
	}

	for i, name := range names {
		check := "[ ]"
		if f.selected[name] {
			check = "[x]"
		}
		line := check + " " + name
		if f.selected[name] {
			line += " " + m.secretKeysSuffix(details[name])
		}
		style := s.Text
		if f.focus == formFocusSecrets && i == f.secretCursor {
			style = s.Selected
		}
		b.WriteString("    " + style.Render(line) + "\n")
	}
	return b.String()
}

// secretKeysSuffix summarizes one secret detail result inline.
func (m Model) secretKeysSuffix(res query.Result) string {
	s := m.styles
	switch {
	case res.Status == query.StatusSuccess:
		detail, ok := res.Data.(walkai.SecretDetail)
		if !ok {
			return ""
		}
		if len(detail.Keys) == 0 {
			return s.MutedText.Render("(no keys)")
		}
		return s.MutedText.Render("(" + strings.Join(detail.Keys, ", ") + ")")
	case res.Status == query.StatusError:
		return s.WarningText.Render("(keys unavailable)")
	default:
		return s.FaintText.Render("(...)")
	}
}
