// Package tui is an interactive terminal front end for classifying text.
package tui

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tsawler/classify"
)

// Classifier is the TUI-facing subset of a Predictor.
type Classifier interface {
	Classify(ctx context.Context, text string) (*classify.Result, error)
}

// topLabels is how many classes the probability chart shows.
const topLabels = 5

// Model is the Bubble Tea model for the interactive classifier.
type Model struct {
	classifier Classifier
	input      textinput.Model
	viewport   viewport.Model
	result     *classify.Result
	summary    string
	status     string
	cursor     int
	ready      bool
}

// New creates a new TUI model instance.
func New(classifier Classifier, summary string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Type or paste text and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{classifier: classifier, input: ti, viewport: vp, summary: summary, status: "Model loaded. Type some text to classify."}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header and summary, status, spacer
		vh := msg.Height - reserved
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.renderResult())
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD || msg.Type == tea.KeyEsc {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			text := strings.TrimSpace(m.input.Value())
			if text == "" {
				m.status = "Please enter some text to classify."
				return m, nil
			}
			res, err := m.classifier.Classify(context.Background(), text)
			if err != nil {
				m.status = "Error: " + err.Error()
				m.result = nil
			} else {
				m.result = res
				m.cursor = 0
				m.status = fmt.Sprintf("Classified %d characters in %s", res.TextLength, res.Timing.Total.Round(10*time.Microsecond))
				m.input.Reset()
			}
			m.viewport.SetContent(m.renderResult())
			return m, nil
		case "down", "tab":
			if m.result != nil && len(m.result.Predictions) > 0 {
				m.cursor = (m.cursor + 1) % len(m.result.Predictions)
				m.viewport.SetContent(m.renderResult())
				return m, nil
			}
		case "up", "shift+tab":
			if m.result != nil && len(m.result.Predictions) > 0 {
				n := len(m.result.Predictions)
				m.cursor = (m.cursor - 1 + n) % n
				m.viewport.SetContent(m.renderResult())
				return m, nil
			}
		case "pgdown", "pgup":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the layout and the latest result.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Text Classifier")
	summary := dimStyle.Render(m.summary)
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + summary + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) renderResult() string {
	if m.result == nil || len(m.result.Predictions) == 0 {
		return "No prediction yet."
	}
	var sb strings.Builder
	if c, ok := m.result.Consensus(); ok {
		fmt.Fprintf(&sb, "%s %s (%d/%d models agree)\n\n",
			dimStyle.Render("Consensus:"), labelStyle.Render(c.DisplayLabel), c.Votes, c.Of)
	}

	for i, p := range m.result.Predictions {
		marker := "  "
		if i == m.cursor {
			marker = selectedStyle.Render("> ")
		}
		fmt.Fprintf(&sb, "%s%-20s %-32s %6.1f%%  %s\n",
			marker, p.AlgorithmName, p.DisplayLabel, 100*p.Confidence, levelStyle(p.ConfidenceLevel).Render(p.ConfidenceLevel))
	}

	p := m.result.Predictions[m.cursor]
	fmt.Fprintf(&sb, "\n%s\n", dimStyle.Render(p.AlgorithmName+" probabilities"))
	for _, id := range topIndices(p.Probabilities, topLabels) {
		name := m.result.DisplayLabels[id]
		fmt.Fprintf(&sb, "%-32s %s %5.1f%%\n", truncate(name, 32), bar(p.Probabilities[id], 24), 100*p.Probabilities[id])
	}
	fmt.Fprintf(&sb, "\n%s", dimStyle.Render(fmt.Sprintf("%d tokens, %d sentences, %d features", m.result.TokenCount, m.result.SentenceCount, m.result.Features)))
	return sb.String()
}

// topIndices returns the indices of the n largest values, largest first and
// lowest index first among equals.
func topIndices(values []float64, n int) []int {
	idx := make([]int, len(values))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return values[idx[a]] > values[idx[b]] })
	if len(idx) > n {
		idx = idx[:n]
	}
	return idx
}

func bar(p float64, width int) string {
	filled := int(p*float64(width) + 0.5)
	filled = min(max(filled, 0), width)
	return barStyle.Render(strings.Repeat("█", filled)) + strings.Repeat("░", width-filled)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func levelStyle(level string) lipgloss.Style {
	switch level {
	case "high":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	case "medium":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	case "low":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	labelStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	selectedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	barStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)
