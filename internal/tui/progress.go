// Package tui provides the terminal progress view and result summary.
package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lepinkainen/deepresearch/internal/research"
)

type eventMsg research.Event

type doneMsg struct{}

type stageLine struct {
	name   string
	kind   research.EventKind
	errors []string
}

type progressModel struct {
	title       string
	spinner     spinner.Model
	stages      []stageLine
	index       map[string]int
	done        bool
	interrupted bool
}

func newProgressModel(title string) *progressModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = spinnerStyle
	return &progressModel{
		title:   title,
		spinner: s,
		index:   make(map[string]int),
	}
}

func (m *progressModel) Init() tea.Cmd { return m.spinner.Tick }

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		m.apply(research.Event(msg))
		return m, nil
	case doneMsg:
		m.done = true
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.interrupted = true
			return m, tea.Quit
		}
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// apply records ev. A stage that runs twice keeps one line.
func (m *progressModel) apply(ev research.Event) {
	i, ok := m.index[ev.Stage]
	if !ok {
		i = len(m.stages)
		m.index[ev.Stage] = i
		m.stages = append(m.stages, stageLine{name: ev.Stage})
	}
	m.stages[i].kind = ev.Kind
	if ev.Kind == research.StageFailed {
		m.stages[i].errors = append(m.stages[i].errors, ev.Errors...)
	}
}

func (m *progressModel) View() string {
	lines := []string{headerStyle.Render("Researching " + m.title)}
	for _, s := range m.stages {
		lines = append(lines, m.renderStage(s))
		for _, e := range s.errors {
			lines = append(lines, errorStyle.Render("    "+e))
		}
	}
	if !m.done {
		lines = append(lines, helpStyle.Render("ctrl+c to stop watching"))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...) + "\n"
}

func (m *progressModel) renderStage(s stageLine) string {
	switch s.kind {
	case research.StageStarted:
		return fmt.Sprintf("%s %s", m.spinner.View(), s.name)
	case research.StageFinished:
		return okStyle.Render("✓") + " " + s.name
	case research.StageFailed:
		return failStyle.Render("✗") + " " + s.name
	default:
		return skipStyle.Render("- " + s.name + " (skipped)")
	}
}

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214")).
			MarginBottom(1)

	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("62"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("161")).Bold(true)
	skipStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Faint(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("248"))

	helpStyle = lipgloss.NewStyle().
			MarginTop(1).
			Foreground(lipgloss.Color("244"))
)

var newProgram = func(m tea.Model, out io.Writer) *tea.Program {
	return tea.NewProgram(m, tea.WithOutput(out), tea.WithInput(nil))
}

// Progress renders research events while a request runs.
type Progress struct {
	program *tea.Program
	done    chan struct{}
}

// StartProgress starts the view on out. Call Stop when the run ends.
func StartProgress(title string, out io.Writer) *Progress {
	p := &Progress{
		program: newProgram(newProgressModel(title), out),
		done:    make(chan struct{}),
	}
	go func() {
		defer close(p.done)
		if _, err := p.program.Run(); err != nil {
			fmt.Fprintf(out, "progress view failed: %v\n", err)
		}
	}()
	return p
}

// Observe forwards ev to the view. It matches research.Observer.
func (p *Progress) Observe(ev research.Event) {
	p.program.Send(eventMsg(ev))
}

// Stop renders the final state and waits for the view to exit.
func (p *Progress) Stop() {
	p.program.Send(doneMsg{})
	<-p.done
}

// Summary renders the headline fields of a result.
func Summary(r *research.Result) string {
	b := r.Book
	rows := [][2]string{
		{"Title", b.Title},
		{"Author", r.Author.Name},
		{"Type", deref(b.BookType)},
		{"Published", deref(b.PublishedYear)},
		{"Publisher", deref(b.Publisher)},
		{"Genres", strings.Join(b.Genres, ", ")},
		{"Pages", deref(b.Pages)},
		{"Goodreads", formatRating(b.Ratings["goodreads"].Score, b.Ratings["goodreads"].Votes)},
		{"Amazon", formatRating(b.Ratings["amazon"].Score, b.Ratings["amazon"].Votes)},
		{"Best seller rank", deref(b.Sales.BestSellerRank)},
		{"Copies sold", deref(b.Sales.CopiesSold)},
	}
	if b.CoverImage != nil {
		rows = append(rows, [2]string{"Cover", b.CoverImage.URL})
	}

	lines := []string{headerStyle.Render(b.Title)}
	for _, row := range rows {
		lines = append(lines, labelStyle.Render(row[0]+":")+" "+row[1])
	}
	if len(r.Errors) > 0 {
		lines = append(lines, "", failStyle.Render(fmt.Sprintf("%d problem(s):", len(r.Errors))))
		for _, e := range r.Errors {
			lines = append(lines, errorStyle.Render("  "+e))
		}
	}
	return summaryBox.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

var (
	labelStyle = lipgloss.NewStyle().Width(18).Foreground(lipgloss.Color("110"))
	summaryBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)
)

func deref[T any](v *T) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprint(*v)
}

func formatRating(score *float64, votes *int) string {
	if score == nil && votes == nil {
		return "-"
	}
	s := "-"
	if score != nil {
		s = fmt.Sprintf("%.2f", *score)
	}
	if votes != nil {
		s += fmt.Sprintf(" (%d votes)", *votes)
	}
	return s
}
