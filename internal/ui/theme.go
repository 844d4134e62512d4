package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/chatdesk/internal/chat"
)

// Theme holds the resolved colors for each UI role.
type Theme struct {
	Name string

	Background string // outermost background
	Surface    string // header, command bar and log panels
	SurfaceAlt string // list and thread panels
	FocusBg    string // focused pane fill

	SelectionBg   string
	SelectionText string

	Border      string
	BorderFocus string

	Text    string
	Muted   string
	Faint   string
	Accent  string
	Success string
	Warning string
	Danger  string
	Info    string

	// AuthorColors is keyed by message type wire name (user, admin, bot).
	AuthorColors map[string]string
}

// palette is a colorscheme's raw swatches, darkest background first.
type palette struct {
	bg    [4]string
	sel   string
	line  string
	fg    string
	dim   string
	faint string

	blue, green, yellow, red, cyan string
	// Author swatches: customer, operator, assistant.
	customer, operator, assistant string
}

func (p palette) theme(name string) Theme {
	return Theme{
		Name:          name,
		Background:    p.bg[0],
		Surface:       p.bg[1],
		SurfaceAlt:    p.bg[2],
		FocusBg:       p.bg[3],
		SelectionBg:   p.sel,
		SelectionText: p.fg,
		Border:        p.line,
		BorderFocus:   p.blue,
		Text:          p.fg,
		Muted:         p.dim,
		Faint:         p.faint,
		Accent:        p.blue,
		Success:       p.green,
		Warning:       p.yellow,
		Danger:        p.red,
		Info:          p.cyan,
		AuthorColors: map[string]string{
			chat.TypeUser.String():  p.customer,
			chat.TypeAdmin.String(): p.operator,
			chat.TypeBot.String():   p.assistant,
		},
	}
}

var palettes = []struct {
	name string
	p    palette
}{
	// github.com/EdenEast/nightfox.nvim
	{"Nightfox", palette{
		bg:        [4]string{"#131a24", "#192330", "#212e3f", "#29394f"},
		sel:       "#2b3b51",
		line:      "#39506d",
		fg:        "#cdcecf",
		dim:       "#738091",
		faint:     "#71839b",
		blue:      "#719cd6",
		green:     "#81b29a",
		yellow:    "#dbc074",
		red:       "#c94f6d",
		cyan:      "#63cdcf",
		customer:  "#63cdcf",
		operator:  "#f4a261",
		assistant: "#9d79d6",
	}},
	// github.com/rebelot/kanagawa.nvim
	{"Kanagawa", palette{
		bg:        [4]string{"#16161D", "#1F1F28", "#2A2A37", "#363646"},
		sel:       "#2D4F67",
		line:      "#54546D",
		fg:        "#DCD7BA",
		dim:       "#C8C093",
		faint:     "#727169",
		blue:      "#7E9CD8",
		green:     "#98BB6C",
		yellow:    "#E6C384",
		red:       "#E46876",
		cyan:      "#7FB4CA",
		customer:  "#7FB4CA",
		operator:  "#FFA066",
		assistant: "#957FB8",
	}},
	// Tailwind slate with sky accents
	{"Slate", palette{
		bg:        [4]string{"#020617", "#0f172a", "#1e293b", "#283548"},
		sel:       "#0284c7",
		line:      "#334155",
		fg:        "#f1f5f9",
		dim:       "#94a3b8",
		faint:     "#64748b",
		blue:      "#38bdf8",
		green:     "#22c55e",
		yellow:    "#f59e0b",
		red:       "#ef4444",
		cyan:      "#06b6d4",
		customer:  "#38bdf8",
		operator:  "#f59e0b",
		assistant: "#14b8a6",
	}},
}

var (
	themes     = map[string]Theme{}
	themeOrder []string
)

func init() {
	for _, def := range palettes {
		themes[def.name] = def.p.theme(def.name)
		themeOrder = append(themeOrder, def.name)
	}
}

// GetTheme returns a theme by name, falling back to the first one.
func GetTheme(name string) Theme {
	if t, ok := themes[name]; ok {
		return t
	}
	return themes[themeOrder[0]]
}

// NextTheme returns the theme after current in the cycle.
func NextTheme(current string) string {
	for i, name := range themeOrder {
		if name == current {
			return themeOrder[(i+1)%len(themeOrder)]
		}
	}
	return themeOrder[0]
}

// ThemeNames returns available theme names in cycle order.
func ThemeNames() []string {
	return themeOrder
}

// Styles contains pre-built Lipgloss styles for a theme.
type Styles struct {
	Background lipgloss.Style
	Surface    lipgloss.Style
	SurfaceAlt lipgloss.Style

	Text        lipgloss.Style
	MutedText   lipgloss.Style
	FaintText   lipgloss.Style
	AccentText  lipgloss.Style
	SuccessText lipgloss.Style
	WarningText lipgloss.Style
	DangerText  lipgloss.Style
	InfoText    lipgloss.Style

	Header   lipgloss.Style
	Footer   lipgloss.Style
	Logo     lipgloss.Style
	Selected lipgloss.Style

	theme Theme
	bg    string
}

// Styles returns Lipgloss styles for this theme.
func (t Theme) Styles() Styles {
	return t.styles("")
}

// styles builds every style, painting bg behind text when it is set so
// segments do not fall back to the terminal's default background.
func (t Theme) styles(bg string) Styles {
	base := func() lipgloss.Style {
		s := lipgloss.NewStyle()
		if bg != "" {
			s = s.Background(lipgloss.Color(bg))
		}
		return s
	}
	fg := func(color string) lipgloss.Style {
		return base().Foreground(lipgloss.Color(color))
	}
	panel := func(fill, color string) lipgloss.Style {
		if bg != "" {
			fill = bg
		}
		return lipgloss.NewStyle().Background(lipgloss.Color(fill)).Foreground(lipgloss.Color(color))
	}

	return Styles{
		Background: panel(t.Background, t.Text),
		Surface:    panel(t.Surface, t.Text),
		SurfaceAlt: panel(t.SurfaceAlt, t.Text),

		Text:        fg(t.Text),
		MutedText:   fg(t.Muted),
		FaintText:   fg(t.Faint),
		AccentText:  fg(t.Accent),
		SuccessText: fg(t.Success).Bold(true),
		WarningText: fg(t.Warning),
		DangerText:  fg(t.Danger).Bold(true),
		InfoText:    fg(t.Info),

		Header:   panel(t.Surface, t.Text).Padding(0, 1),
		Footer:   panel(t.Surface, t.Muted).Padding(0, 1),
		Logo:     fg(t.Warning).Bold(true),
		Selected: panel(t.SelectionBg, t.SelectionText),

		theme: t,
		bg:    bg,
	}
}

// WithBackground returns the same styles with bgColor painted behind all of
// them.
func (s Styles) WithBackground(bgColor string) Styles {
	return s.theme.styles(bgColor)
}

// AuthorStyle returns the label style for messages of type t.
func (s Styles) AuthorStyle(t chat.MessageType) lipgloss.Style {
	color := s.theme.AuthorColors[t.String()]
	if color == "" {
		color = s.theme.Muted
	}
	style := lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Bold(true)
	if s.bg != "" {
		style = style.Background(lipgloss.Color(s.bg))
	}
	return style
}

// BadgeStyle renders a short inverted label such as AUTO or MANUAL.
func (s Styles) BadgeStyle(color string) lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color(s.theme.Background)).
		Background(lipgloss.Color(color)).
		Bold(true).
		Padding(0, 1)
}
