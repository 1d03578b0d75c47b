// Package tui holds the interactive terminal views. Only the list
// command has one; everything else prints plain report lines.
package tui

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"revstack.dev/revstack/internal/actions"
)

type listKeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Select key.Binding
	Quit   key.Binding
}

func (k listKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Select, k.Quit}
}

func (k listKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Up, k.Down}, {k.Select, k.Quit}}
}

var defaultListKeys = listKeyMap{
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "down"),
	),
	Select: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "show URL"),
	),
	Quit: key.NewBinding(
		key.WithKeys("ctrl+c", "q", "esc"),
		key.WithHelp("q/esc", "quit"),
	),
}

// listModel is the bubbletea model behind 'revstack list --interactive'.
type listModel struct {
	entries  []actions.ListEntry
	table    table.Model
	keys     listKeyMap
	help     help.Model
	selected string
}

func newListModel(entries []actions.ListEntry) listModel {
	columns := []table.Column{
		{Title: "PR", Width: 6},
		{Title: "Stack", Width: 6},
		{Title: "Title", Width: 48},
		{Title: "Review", Width: 17},
		{Title: "Change", Width: 10},
	}

	rows := make([]table.Row, len(entries))
	for i, e := range entries {
		change := "remote only"
		if e.ChangeID != "" {
			change = shorten(e.ChangeID, 8)
		}
		rows[i] = table.Row{
			fmt.Sprintf("#%d", e.Number),
			fmt.Sprintf("%d/%d", e.Position, e.ChainLen),
			shorten(e.Title, 48),
			e.Review.String(),
			change,
		}
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(min(len(rows)+1, 15)),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.Bold(true).BorderStyle(lipgloss.NormalBorder()).BorderBottom(true)
	styles.Selected = styles.Selected.Foreground(lipgloss.Color("205")).Bold(true)
	t.SetStyles(styles)

	return listModel{
		entries: entries,
		table:   t,
		keys:    defaultListKeys,
		help:    help.New(),
	}
}

func (m listModel) Init() tea.Cmd {
	return nil
}

func (m listModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit

		case key.Matches(msg, m.keys.Select):
			if cursor := m.table.Cursor(); cursor >= 0 && cursor < len(m.entries) {
				m.selected = m.entries[cursor].URL
			}
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m listModel) View() string {
	var b strings.Builder
	b.WriteString(m.table.View())
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	b.WriteString("\n")
	return b.String()
}

// BrowseList runs the interactive pull request table. Selecting an entry
// prints its URL after the table closes.
func BrowseList(entries []actions.ListEntry) error {
	if len(entries) == 0 {
		fmt.Println("No open pull requests.")
		return nil
	}

	m := newListModel(entries)
	p := tea.NewProgram(m, tea.WithInput(os.Stdin), tea.WithOutput(os.Stdout))

	finalModel, err := p.Run()
	if err != nil {
		return err
	}

	if selected := finalModel.(listModel).selected; selected != "" {
		fmt.Println(selected)
	}
	return nil
}

func shorten(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}
