package ui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/walkai/stride/internal/query"
	"github.com/walkai/stride/internal/walkai"
)

// registryState is the image browser overlay opened from the submission
// form. Selecting an entry writes the image reference into the form.
type registryState struct {
	sub    *query.Subscription
	res    query.Result
	filter textinput.Model
	cursor int
}

func (m Model) openRegistry() (tea.Model, tea.Cmd) {
	filter := textinput.New()
	filter.Placeholder = "filter images"
	filter.CharLimit = 128
	filter.Width = 40

	client := m.client
	sub, cur := m.cache.Subscribe(keyJobImages, func(ctx context.Context) (any, error) {
		return client.FetchJobImages(ctx)
	}, query.Options{StaleAfter: catalogStale})

	m.jobs.registry = registryState{sub: sub, res: cur, filter: filter}
	m.jobs.showRegistry = true
	return m, tea.Batch(waitResult(sub), m.jobs.registry.filter.Focus())
}

func (m *Model) closeRegistry() {
	if !m.jobs.showRegistry {
		return
	}
	if m.jobs.registry.sub != nil {
		m.jobs.registry.sub.Close()
	}
	m.jobs.registry = registryState{}
	m.jobs.showRegistry = false
}

func (m Model) handleRegistryKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	images := m.filteredImages()

	switch msg.String() {
	case "esc":
		m.closeRegistry()
		return m, nil
	case "up":
		if m.jobs.registry.cursor > 0 {
			m.jobs.registry.cursor--
		}
		return m, nil
	case "down":
		if m.jobs.registry.cursor < len(images)-1 {
			m.jobs.registry.cursor++
		}
		return m, nil
	case "enter":
		if m.jobs.registry.cursor < len(images) {
			img := images[m.jobs.registry.cursor]
			m.jobs.form.image.SetValue(imageRef(img))
			m.closeRegistry()
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.jobs.registry.filter, cmd = m.jobs.registry.filter.Update(msg)
	m.jobs.registry.cursor = 0
	return m, cmd
}

// filteredImages applies the filter input to the catalog snapshot.
func (m Model) filteredImages() []walkai.RegistryImage {
	images, _ := m.jobs.registry.res.Data.([]walkai.RegistryImage)
	return filterImages(images, m.jobs.registry.filter.Value())
}

// filterImages keeps entries whose image or tag contains the query,
// case-insensitively.
func filterImages(images []walkai.RegistryImage, q string) []walkai.RegistryImage {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return images
	}
	out := make([]walkai.RegistryImage, 0, len(images))
	for _, img := range images {
		if strings.Contains(strings.ToLower(img.Image), q) || strings.Contains(strings.ToLower(img.Tag), q) {
			out = append(out, img)
		}
	}
	return out
}

// imageRef is the reference written into the submission form.
func imageRef(img walkai.RegistryImage) string {
	if img.Tag == "" {
		return img.Image
	}
	return img.Image + ":" + img.Tag
}

// digestShort trims a registry digest down to a recognizable prefix.
func digestShort(digest string) string {
	digest = strings.TrimPrefix(digest, "sha256:")
	if len(digest) > 12 {
		digest = digest[:12]
	}
	return digest
}

func (m Model) renderRegistry() string {
	s := m.styles
	r := m.jobs.registry
	var b strings.Builder

	b.WriteString("\n  " + s.AccentText.Render("Registry images") + "\n\n")
	b.WriteString("  " + r.filter.View() + "\n\n")

	switch {
	case r.res.Status == query.StatusError && !r.res.HasData:
		b.WriteString("  " + s.DangerText.Render("Could not load images: "+errorLine(r.res.Err)) + "\n")
	case !r.res.HasData:
		b.WriteString("  " + s.MutedText.Render("Loading images...") + "\n")
	default:
		if r.res.Status == query.StatusError {
			b.WriteString("  " + s.WarningText.Render("Refresh failed — showing cached catalog") + "\n")
		}
		images := m.filteredImages()
		if len(images) == 0 {
			b.WriteString("  " + s.MutedText.Render("No matching images.") + "\n")
		}
		now := time.Now()
		for i, img := range images {
			line := padRight(truncate(imageRef(img), 52), 54) +
				padRight(digestShort(img.Digest), 14) +
				formatRelative(now, parsePushedAt(img))
			style := s.Text
			if i == r.cursor {
				style = s.Selected
			}
			b.WriteString("  " + style.Render(line) + "\n")
		}
	}

	b.WriteString("\n  " + s.FaintText.Render("enter: use image · esc: back to form") + "\n")
	return b.String()
}

func parsePushedAt(img walkai.RegistryImage) time.Time {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, img.PushedAt); err == nil {
			return t
		}
	}
	return time.Time{}
}
