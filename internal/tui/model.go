// Package tui is an interactive terminal search client.
package tui

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"semsearch/internal/chunker"
	"semsearch/internal/domain"
)

// Searcher is the TUI-facing subset of the search service.
type Searcher interface {
	Search(ctx context.Context, query string, k int, fields []string) ([]domain.Result, error)
}

// Options configures the query issued for every Enter.
type Options struct {
	K      int
	Fields []string
	// Banner is shown under the header, e.g. a summary of the last ingest.
	Banner string
}

// Model is the Bubble Tea model for the TUI application.
type Model struct {
	ctx       context.Context
	searcher  Searcher
	opts      Options
	input     textinput.Model
	viewport  viewport.Model
	results   []domain.Result
	status    string
	cursor    int
	ready     bool
	searching bool
	lastQuery string
}

// searchDoneMsg carries the outcome of an asynchronous search.
type searchDoneMsg struct {
	query   string
	results []domain.Result
	err     error
}

// New creates a new TUI model instance. The content field is always
// requested since the result pane shows and highlights it.
func New(ctx context.Context, searcher Searcher, opts Options) Model {
	if opts.K <= 0 {
		opts.K = 5
	}
	if !slices.Contains(opts.Fields, domain.FieldContent) {
		opts.Fields = append(slices.Clone(opts.Fields), domain.FieldContent)
	}
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Type query and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{ctx: ctx, searcher: searcher, opts: opts, input: ti, viewport: vp, status: "Ready. Type to search."}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) search(q string) tea.Cmd {
	return func() tea.Msg {
		res, err := m.searcher.Search(m.ctx, q, m.opts.K, m.opts.Fields)
		return searchDoneMsg{query: q, results: res, err: err}
	}
}

// Update handles key, window and search events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header and banner, status, spacer
		vh := max(3, msg.Height-reserved)
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.renderCurrentResult())
		return m, nil
	case searchDoneMsg:
		m.searching = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			m.results = nil
		} else {
			m.status = fmt.Sprintf("%d results for %q", len(msg.results), msg.query)
			m.results = msg.results
			m.cursor = 0
			m.lastQuery = msg.query
		}
		m.viewport.SetContent(m.renderCurrentResult())
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD || msg.Type == tea.KeyEsc {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q != "" && !m.searching {
				m.searching = true
				m.status = "Searching..."
				return m, m.search(q)
			}
		case "down", "tab":
			if len(m.results) > 0 {
				m.cursor = (m.cursor + 1) % len(m.results)
				m.viewport.SetContent(m.renderCurrentResult())
				return m, nil
			}
		case "up", "shift+tab":
			if len(m.results) > 0 {
				m.cursor = (m.cursor - 1 + len(m.results)) % len(m.results)
				m.viewport.SetContent(m.renderCurrentResult())
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the TUI layout and current result.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Semantic Search")
	banner := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.opts.Banner)
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + banner + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) renderCurrentResult() string {
	if len(m.results) == 0 {
		return "No results yet."
	}
	r := m.results[m.cursor]
	var b strings.Builder
	fmt.Fprintf(&b, "Result %d/%d  score=%.3f\n", m.cursor+1, len(m.results), r.Score)
	if title, ok := r.Fields[domain.FieldTitle].(string); ok {
		b.WriteString(titleStyle.Render(title))
		b.WriteByte('\n')
	}
	if url, ok := r.Fields[domain.FieldURL].(string); ok {
		b.WriteString(urlStyle.Render(url))
		b.WriteByte('\n')
	}
	for _, k := range otherFields(r.Fields) {
		fmt.Fprintf(&b, "%s: %v\n", k, r.Fields[k])
	}
	if content, ok := r.Fields[domain.FieldContent].(string); ok {
		b.WriteByte('\n')
		b.WriteString(highlightBestSentence(content, m.lastQuery))
	}
	return b.String()
}

func otherFields(rec domain.Record) []string {
	var keys []string
	for k := range rec {
		switch k {
		case domain.FieldTitle, domain.FieldURL, domain.FieldContent:
		default:
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	titleStyle     = lipgloss.NewStyle().Bold(true)
	urlStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Underline(true)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	unicodeWordRe  = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	splitter       = chunker.NewUAX29Splitter()
)

// highlightBestSentence renders the best matching sentence of text in the highlight style.
func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	sentences, _ := splitter.Split(text)
	parts := make([]string, len(sentences))
	for i, s := range sentences {
		parts[i] = s.Text
	}
	if len(parts) == 0 {
		parts = []string{strings.TrimSpace(text)}
	}
	if best := bestSentence(parts, query); best >= 0 {
		parts[best] = highlightStyle.Render(parts[best])
	}
	return strings.Join(parts, " ")
}

// bestSentence returns the index of the sentence sharing the most words with
// query, or -1 when query has no words. Ties go to the earliest sentence.
func bestSentence(sentences []string, query string) int {
	qTokens := toTokenSet(query)
	if len(qTokens) == 0 {
		return -1
	}
	bestIdx, bestScore := 0, -1
	for i, s := range sentences {
		if score := tokenOverlapScore(qTokens, s); score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	return bestIdx
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	seen := make(map[string]struct{})
	for _, t := range unicodeWordRe.FindAllString(strings.ToLower(sentence), -1) {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := queryTokens[t]; ok {
			score++
		}
	}
	return score
}
