package ui

import (
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme bundles palette + symbols + box borders.
// All UI helpers pull from `current`.
type Theme struct {
	Name string

	Title, Muted, Accent, Success, Error, Pending lipgloss.Style
	Done, Overdue, Selected                       lipgloss.Style
	High, Medium, Low                             lipgloss.Style

	Border      lipgloss.Border
	BorderColor lipgloss.TerminalColor

	BoxUnchecked, BoxChecked string
	SymDone, SymPending      string
	SymOK, SymFail           string
}

var (
	mu      sync.RWMutex
	current = classic()
)

// ThemeNames lists the built-in themes.
var ThemeNames = []string{"classic", "neon", "mono"}

// SetTheme switches the active theme. Unknown names fall back to classic.
func SetTheme(name string) {
	var t Theme
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "neon":
		t = neon()
	case "mono":
		t = mono()
		SetColor(false)
	default:
		t = classic()
	}
	mu.Lock()
	current = t
	mu.Unlock()
}

// Current returns the active theme.
func Current() Theme {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// SetColor forces colors off (false) or back to terminal detection (true).
func SetColor(enabled bool) {
	if !enabled {
		lipgloss.SetColorProfile(termenv.Ascii)
		return
	}
	lipgloss.SetColorProfile(termenv.EnvColorProfile())
}

func fg(c string) lipgloss.Style { return lipgloss.NewStyle().Foreground(lipgloss.Color(c)) }

func classic() Theme {
	return Theme{
		Name:    "classic",
		Title:   lipgloss.NewStyle().Bold(true),
		Muted:   lipgloss.NewStyle().Faint(true),
		Accent:  fg("12"),
		Success: fg("42"),
		Error:   fg("9").Bold(true),
		Pending: fg("214"),

		Done:     lipgloss.NewStyle().Faint(true).Strikethrough(true),
		Overdue:  fg("9"),
		Selected: lipgloss.NewStyle().Bold(true).Reverse(true),
		High:     fg("9").Bold(true),
		Medium:   fg("214"),
		Low:      fg("8"),

		Border:      lipgloss.RoundedBorder(),
		BorderColor: lipgloss.Color("8"),

		BoxUnchecked: "☐", BoxChecked: "☑",
		SymDone: "✔", SymPending: "•",
		SymOK: "✔", SymFail: "✖",
	}
}

func neon() Theme {
	t := classic()
	t.Name = "neon"
	t.Title = fg("13").Bold(true) // bright magenta
	t.Accent = fg("14")
	t.Pending = fg("11")
	t.Medium = fg("11")
	t.Selected = fg("13").Bold(true).Reverse(true)
	t.BorderColor = lipgloss.Color("13")
	t.BoxUnchecked, t.BoxChecked = "◻", "◼"
	return t
}

func mono() Theme {
	plain := lipgloss.NewStyle()
	t := classic()
	t.Name = "mono"
	t.Title, t.Muted, t.Accent = plain, plain, plain
	t.Success, t.Error, t.Pending = plain, plain, plain
	t.Done, t.Overdue = plain, plain
	t.Selected = plain.Reverse(true)
	t.High, t.Medium, t.Low = plain, plain, plain
	t.Border = lipgloss.Border{
		Top: "-", Bottom: "-", Left: "|", Right: "|",
		TopLeft: "+", TopRight: "+", BottomLeft: "+", BottomRight: "+",
	}
	t.BorderColor = lipgloss.NoColor{}
	t.BoxUnchecked, t.BoxChecked = "[ ]", "[x]"
	t.SymDone, t.SymPending = "x", "-"
	t.SymOK, t.SymFail = "ok", "error:"
	return t
}
