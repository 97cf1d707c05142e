// Package ui renders command output for terminals and pipes.
package ui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/muesli/termenv"

	"github.com/gitswitch/cli/internal/identity"
)

// Theme holds the styles bound to one output renderer.
type Theme struct {
	r       *lipgloss.Renderer
	color   bool
	Header  lipgloss.Style
	Active  lipgloss.Style
	Muted   lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Key     lipgloss.Style
}

// NewTheme returns styles for w. Color is dropped when color is false,
// when NO_COLOR is set or when w is not a terminal.
func NewTheme(w io.Writer, color bool) *Theme {
	r := lipgloss.NewRenderer(w)
	if !color || termenv.EnvNoColor() {
		r.SetColorProfile(termenv.Ascii)
	}
	return &Theme{
		r:       r,
		color:   r.ColorProfile() != termenv.Ascii,
		Header:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		Active:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("10")),
		Muted:   r.NewStyle().Foreground(lipgloss.Color("8")),
		Warning: r.NewStyle().Foreground(lipgloss.Color("11")),
		Error:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
		Key:     r.NewStyle().Bold(true),
	}
}

// IdentityTable renders identities in stored order with the active one marked.
func (t *Theme) IdentityTable(items []identity.Identity) string {
	rows := make([][]string, 0, len(items))
	for _, it := range items {
		mark := ""
		if it.IsActive {
			mark = "*"
		}
		rows = append(rows, []string{
			mark,
			it.DisplayName,
			it.ServiceUsername,
			it.CommitterName,
			it.CommitterEmail,
			LastUsed(it.LastUsedAt),
			ShortID(it.ID),
		})
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(t.Muted).
		Headers("", "NAME", "USERNAME", "COMMITTER", "EMAIL", "LAST USED", "ID").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			style := t.r.NewStyle().Padding(0, 1)
			switch {
			case row == table.HeaderRow:
				return t.Header.Padding(0, 1)
			case row >= 0 && row < len(items) && items[row].IsActive:
				return t.Active.Padding(0, 1)
			}
			return style
		})
	return tbl.String()
}

// KeyValues renders aligned "key: value" lines.
func (t *Theme) KeyValues(pairs [][2]string) string {
	width := 0
	for _, p := range pairs {
		if len(p[0]) > width {
			width = len(p[0])
		}
	}
	var b strings.Builder
	for _, p := range pairs {
		b.WriteString(t.Key.Render(p[0] + ":"))
		b.WriteString(strings.Repeat(" ", width-len(p[0])+1))
		b.WriteString(p[1])
		b.WriteString("\n")
	}
	return b.String()
}

// WriteJSON writes v as indented JSON, highlighted when the theme is colored.
func (t *Theme) WriteJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	data = append(data, '\n')
	if !t.color {
		_, err = w.Write(data)
		return err
	}
	var buf bytes.Buffer
	if err := quick.Highlight(&buf, string(data), "json", "terminal256", "monokai"); err != nil {
		_, err = w.Write(data)
		return err
	}
	_, err = buf.WriteTo(w)
	return err
}

// MaskSecret keeps the first and last four characters of s.
func MaskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// ShortID returns the first eight characters of an identity id.
func ShortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// LastUsed formats an optional timestamp for tables.
func LastUsed(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Local().Format("2006-01-02 15:04")
}
