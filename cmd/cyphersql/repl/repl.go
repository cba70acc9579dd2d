// Package repl is an interactive Cypher console, grounded on scaf's
// runner/tui.go bubbletea model and cmd/crud-tui's key-handling shape.
// Every entered line runs against one shared in-memory store for the
// life of the process.
package repl

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"go.uber.org/zap"

	"github.com/cyphersql/cyphersql/interpreter"
	"github.com/cyphersql/cyphersql/metrics"
	"github.com/cyphersql/cyphersql/parser"
	"github.com/cyphersql/cyphersql/record"
	"github.com/cyphersql/cyphersql/store"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7D56F4")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true)

	summaryStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")).
			Padding(1, 0)
)

type resultMsg struct {
	res *record.Result
	err error
}

type model struct {
	s       *store.Store
	in      *interpreter.Interpreter
	metrics *metrics.Recorder
	spinner spinner.Model

	input    string
	history  []string
	lastLine string
	running  bool

	width, height int
}

func newModel(s *store.Store, logger *zap.Logger, maxHops int, rec *metrics.Recorder) model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4"))

	return model{
		s: s,
		in: interpreter.New(s,
			interpreter.WithLogger(logger),
			interpreter.WithMaxHops(maxHops),
			interpreter.WithMetrics(rec),
		),
		metrics: rec,
		spinner: sp,
		width:   80,
		height:  24,
	}
}

func (m model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m model) runQuery(src string) tea.Cmd {
	return func() tea.Msg {
		q, err := parser.Parse(src)
		if err != nil {
			m.metrics.ObserveParseError()
			return resultMsg{err: err}
		}

		res, err := m.in.Execute(q)

		return resultMsg{res: res, err: err}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		return m, nil

	case spinner.TickMsg:
		if m.running {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)

			return m, cmd
		}

		return m, nil

	case resultMsg:
		m.running = false
		m.lastLine = renderResult(msg.res, msg.err)

		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit

		case "enter":
			line := strings.TrimSpace(m.input)
			m.input = ""

			if line == "" {
				return m, nil
			}

			if line == "exit" || line == "quit" {
				return m, tea.Quit
			}

			m.history = append(m.history, line)
			m.running = true
			m.lastLine = ""

			return m, tea.Batch(m.spinner.Tick, m.runQuery(line))

		case "backspace":
			if len(m.input) > 0 {
				m.input = m.input[:len(m.input)-1]
			}

			return m, nil

		default:
			char := msg.String()
			if msg.Type == tea.KeyRunes {
				char = string(msg.Runes)
			} else if char == "space" {
				char = " "
			} else if len(char) != 1 {
				return m, nil
			}

			m.input += char

			return m, nil
		}
	}

	return m, nil
}

func renderResult(res *record.Result, err error) string {
	if err != nil {
		return errorStyle.Render(err.Error())
	}

	var b strings.Builder

	if len(res.Keys) > 0 {
		b.WriteString(strings.Join(res.Keys, " | "))
		b.WriteString("\n")

		for _, row := range res.Records {
			parts := make([]string, len(row))
			for i, v := range row {
				parts[i] = fmt.Sprintf("%v", v)
			}

			b.WriteString(strings.Join(parts, " | "))
			b.WriteString("\n")
		}
	}

	b.WriteString(summaryStyle.Render(fmt.Sprintf(
		"nodes created: %d, relationships created: %d, properties set: %d",
		res.Summary.NodesCreated, res.Summary.RelationshipsCreated, res.Summary.PropertiesSet,
	)))

	return b.String()
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("cyphersql"))
	b.WriteString("\n\n")

	for _, line := range m.history {
		b.WriteString(promptStyle.Render("> "))
		b.WriteString(line)
		b.WriteString("\n")
	}

	if m.running {
		b.WriteString(m.spinner.View())
		b.WriteString(" running...\n")
	} else if m.lastLine != "" {
		b.WriteString(m.lastLine)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(promptStyle.Render("> "))
	b.WriteString(m.input)
	b.WriteString("\n")

	b.WriteString(helpStyle.Render("enter to run · ctrl+c to quit"))

	return b.String()
}

// Run starts the interactive console bound to s, blocking until the
// user quits. Input is disabled automatically when stdout isn't a TTY,
// matching scaf's runner.TUIFormatter TTY detection. maxHops and rec
// are threaded straight into the interpreter backing the console.
func Run(s *store.Store, logger *zap.Logger, maxHops int, rec *metrics.Recorder) error {
	m := newModel(s, logger, maxHops, rec)

	opts := []tea.ProgramOption{tea.WithAltScreen()}

	if !isatty.IsTerminal(os.Stdout.Fd()) {
		opts = append(opts, tea.WithInput(nil))
	}

	p := tea.NewProgram(m, opts...)

	_, err := p.Run()

	return err
}
