package ui

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/gitswitch/cli/internal/identity"
)

// ErrCancelled is returned when the picker is closed without a choice.
var ErrCancelled = errors.New("selection cancelled")

type identityItem struct {
	ident identity.Identity
}

func (i identityItem) Title() string {
	if i.ident.IsActive {
		return i.ident.DisplayName + " (active)"
	}
	return i.ident.DisplayName
}

func (i identityItem) Description() string {
	return fmt.Sprintf("%s  %s <%s>", i.ident.ServiceUsername, i.ident.CommitterName, i.ident.CommitterEmail)
}

func (i identityItem) FilterValue() string {
	return i.ident.DisplayName + " " + i.ident.ServiceUsername
}

type pickerModel struct {
	list     list.Model
	chosen   *identity.Identity
	quitting bool
}

func newPickerModel(items []identity.Identity) pickerModel {
	listItems := make([]list.Item, len(items))
	selected := 0
	for i, it := range items {
		listItems[i] = identityItem{ident: it}
		if it.IsActive {
			selected = i
		}
	}
	l := list.New(listItems, list.NewDefaultDelegate(), 80, 20)
	l.Title = "Switch GitHub identity"
	l.Select(selected)
	return pickerModel{list: l}
}

func (m pickerModel) Init() tea.Cmd {
	return nil
}

func (m pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width, msg.Height)
		return m, nil
	case tea.KeyMsg:
		if m.list.FilterState() == list.Filtering {
			break
		}
		switch msg.String() {
		case "ctrl+c", "esc", "q":
			m.quitting = true
			return m, tea.Quit
		case "enter":
			if item, ok := m.list.SelectedItem().(identityItem); ok {
				chosen := item.ident
				m.chosen = &chosen
			}
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m pickerModel) View() string {
	if m.chosen != nil || m.quitting {
		return ""
	}
	return m.list.View()
}

// PickIdentity lets the user choose an identity interactively.
func PickIdentity(ctx context.Context, items []identity.Identity, in io.Reader, out io.Writer) (identity.Identity, error) {
	if len(items) == 0 {
		return identity.Identity{}, errors.New("no identities configured")
	}
	p := tea.NewProgram(newPickerModel(items),
		tea.WithContext(ctx),
		tea.WithInput(in),
		tea.WithOutput(out),
	)
	final, err := p.Run()
	if err != nil {
		if errors.Is(err, tea.ErrProgramKilled) {
			return identity.Identity{}, ErrCancelled
		}
		return identity.Identity{}, fmt.Errorf("picker failed: %w", err)
	}
	m, ok := final.(pickerModel)
	if !ok || m.chosen == nil {
		return identity.Identity{}, ErrCancelled
	}
	return *m.chosen, nil
}
