package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/klauern/kagglesync/internal/model"
)

// KernelListAction represents the action chosen in the kernel picker.
type KernelListAction int

const (
	// KernelListActionNone means the user quit without pulling.
	KernelListActionNone KernelListAction = iota
	// KernelListActionPull means the user confirmed a selection.
	KernelListActionPull
)

// KernelListResult contains the result of the kernel picker.
type KernelListResult struct {
	Action   KernelListAction
	Selected []model.NotebookDescriptor
}

type kernelListKeyMap struct {
	Up        key.Binding
	Down      key.Binding
	Toggle    key.Binding
	ToggleAll key.Binding
	Confirm   key.Binding
	Filter    key.Binding
	ClearFlt  key.Binding
	Help      key.Binding
	Quit      key.Binding
}

func defaultKernelListKeyMap() kernelListKeyMap {
	return kernelListKeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Toggle: key.NewBinding(
			key.WithKeys(" ", "tab"),
			key.WithHelp("space/tab", "toggle"),
		),
		ToggleAll: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "toggle all"),
		),
		Confirm: key.NewBinding(
			key.WithKeys("enter", "y"),
			key.WithHelp("enter", "pull selected"),
		),
		Filter: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "filter"),
		),
		ClearFlt: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "clear filter"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// KernelListModel is the BubbleTea model for choosing which kernels to pull.
type KernelListModel struct {
	table     table.Model
	kernels   []model.NotebookDescriptor
	filtered  []model.NotebookDescriptor
	selected  map[string]bool // keyed by owner/slug
	keys      kernelListKeyMap
	result    KernelListResult
	filter    string
	filtering bool
	showHelp  bool
	quitting  bool
	width     int
}

var kernelListStyles = struct {
	Help        lipgloss.Style
	Filter      lipgloss.Style
	FilterInput lipgloss.Style
	Status      lipgloss.Style
}{
	Help:        lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
	Filter:      lipgloss.NewStyle().Foreground(lipgloss.Color("6")),
	FilterInput: lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true),
	Status:      lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Padding(0, 1),
}

// NewKernelListModel creates a picker over kernels, all initially selected.
func NewKernelListModel(kernels []model.NotebookDescriptor) KernelListModel {
	columns := []table.Column{
		{Title: " ", Width: 3},
		{Title: "Slug", Width: 30},
		{Title: "Title", Width: 36},
		{Title: "Language", Width: 8},
		{Title: "Visibility", Width: 10},
	}

	sorted := make([]model.NotebookDescriptor, len(kernels))
	copy(sorted, kernels)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Slug < sorted[j].Slug
	})

	selected := make(map[string]bool, len(sorted))
	for _, k := range sorted {
		selected[k.Ref()] = true
	}

	m := KernelListModel{
		kernels:  sorted,
		filtered: sorted,
		selected: selected,
		keys:     defaultKernelListKeyMap(),
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithRows(m.rows(sorted)),
		table.WithFocused(true),
		table.WithHeight(15),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	m.table = t
	return m
}

func (m KernelListModel) rows(kernels []model.NotebookDescriptor) []table.Row {
	rows := make([]table.Row, len(kernels))
	for i, k := range kernels {
		checkbox := "[ ]"
		if m.selected[k.Ref()] {
			checkbox = "[✓]"
		}
		visibility := "public"
		if k.IsPrivate {
			visibility = "private"
		}
		rows[i] = table.Row{
			checkbox,
			truncateText(k.Slug, 30),
			truncateText(k.Title, 36),
			string(k.Language),
			visibility,
		}
	}
	return rows
}

// Init implements tea.Model.
func (m KernelListModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m KernelListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.table.SetHeight(max(msg.Height-10, 5))
		m.width = msg.Width

	case tea.KeyMsg:
		if m.filtering {
			switch msg.String() {
			case "enter":
				m.filtering = false
			case "esc":
				m.filter = ""
				m.filtering = false
				m.applyFilter()
			case "backspace":
				if len(m.filter) > 0 {
					m.filter = m.filter[:len(m.filter)-1]
					m.applyFilter()
				}
			default:
				if len(msg.String()) == 1 {
					m.filter += msg.String()
					m.applyFilter()
				}
			}
			return m, nil
		}

		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit

		case key.Matches(msg, m.keys.Help):
			m.showHelp = !m.showHelp
			return m, nil

		case key.Matches(msg, m.keys.Filter):
			m.filtering = true
			return m, nil

		case key.Matches(msg, m.keys.ClearFlt):
			m.filter = ""
			m.applyFilter()
			return m, nil

		case key.Matches(msg, m.keys.Toggle):
			if k, ok := m.current(); ok {
				m.selected[k.Ref()] = !m.selected[k.Ref()]
				m.table.SetRows(m.rows(m.filtered))
			}
			return m, nil

		case key.Matches(msg, m.keys.ToggleAll):
			count := 0
			for _, k := range m.filtered {
				if m.selected[k.Ref()] {
					count++
				}
			}
			selectAll := count < len(m.filtered)
			for _, k := range m.filtered {
				m.selected[k.Ref()] = selectAll
			}
			m.table.SetRows(m.rows(m.filtered))
			return m, nil

		case key.Matches(msg, m.keys.Confirm):
			chosen := m.Selected()
			if len(chosen) == 0 {
				return m, nil
			}
			m.result = KernelListResult{Action: KernelListActionPull, Selected: chosen}
			m.quitting = true
			return m, tea.Quit
		}
	}

	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *KernelListModel) applyFilter() {
	if m.filter == "" {
		m.filtered = m.kernels
	} else {
		needle := strings.ToLower(m.filter)
		var filtered []model.NotebookDescriptor
		for _, k := range m.kernels {
			if strings.Contains(strings.ToLower(k.Slug), needle) ||
				strings.Contains(strings.ToLower(k.Title), needle) {
				filtered = append(filtered, k)
			}
		}
		m.filtered = filtered
	}
	m.table.SetRows(m.rows(m.filtered))
}

func (m KernelListModel) current() (model.NotebookDescriptor, bool) {
	cursor := m.table.Cursor()
	if cursor >= 0 && cursor < len(m.filtered) {
		return m.filtered[cursor], true
	}
	return model.NotebookDescriptor{}, false
}

// Selected returns the checked kernels in display order.
func (m KernelListModel) Selected() []model.NotebookDescriptor {
	var out []model.NotebookDescriptor
	for _, k := range m.kernels {
		if m.selected[k.Ref()] {
			out = append(out, k)
		}
	}
	return out
}

// View implements tea.Model.
func (m KernelListModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(Styles.Title.Padding(0, 1).Render("Pull Notebooks"))
	b.WriteString("\n\n")

	if m.filter != "" || m.filtering {
		val := kernelListStyles.FilterInput.Render(m.filter)
		if m.filtering {
			val += "█"
		}
		b.WriteString(kernelListStyles.Filter.Render("Filter: ") + val + "\n\n")
	}

	b.WriteString(m.table.View())
	b.WriteString("\n")

	if k, ok := m.current(); ok && k.Title != "" {
		width := m.width
		if width <= 0 {
			width = 80
		}
		b.WriteString(formatDetail("Title: ", k.Title, width))
		b.WriteString("\n")
	}

	status := fmt.Sprintf("%d kernel(s) selected of %d", len(m.Selected()), len(m.filtered))
	if m.filter != "" {
		status = fmt.Sprintf("%d selected, %d of %d shown (filtered)", len(m.Selected()), len(m.filtered), len(m.kernels))
	}
	b.WriteString(kernelListStyles.Status.Render(status))
	b.WriteString("\n")

	if m.showHelp {
		b.WriteString("\n")
		b.WriteString(kernelListStyles.Help.Render(`Navigation:
  ↑/k        Move up
  ↓/j        Move down

Selection:
  Space/Tab  Toggle current kernel
  a          Toggle all kernels

Actions:
  Enter/y    Pull selected kernels

Filter:
  /          Start filtering (by slug or title)
  Esc        Clear filter

General:
  ?          Toggle full help
  q          Quit without pulling`))
	} else {
		keys := []string{"↑/↓ navigate", "space toggle", "a toggle all", "enter pull", "/ filter", "? help", "q quit"}
		b.WriteString(kernelListStyles.Help.Render(strings.Join(keys, " • ")))
	}

	return b.String()
}

// Result returns the result of the user interaction.
func (m KernelListModel) Result() KernelListResult {
	return m.result
}

// RunKernelList runs the interactive kernel picker.
func RunKernelList(kernels []model.NotebookDescriptor) (KernelListResult, error) {
	if len(kernels) == 0 {
		return KernelListResult{}, nil
	}

	finalModel, err := Run(NewKernelListModel(kernels), tea.WithAltScreen())
	if err != nil {
		return KernelListResult{}, err
	}
	if m, ok := finalModel.(KernelListModel); ok {
		return m.Result(), nil
	}
	return KernelListResult{}, nil
}
