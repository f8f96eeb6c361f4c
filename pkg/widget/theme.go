package widget

import "strings"

const (
	defaultPrimaryColor   = "#2563eb"
	defaultFontFamily     = "system-ui, sans-serif"
	defaultFontSizePx     = 15
	defaultBorderRadiusPx = 16
	defaultPosition       = "right"
)

// Palette is the base color set shared by every widget surface.
type Palette struct {
	Background    string
	Surface       string
	TextPrimary   string
	TextSecondary string
	UserBubble    string
	BotBubble     string
}

var lightPalette = Palette{
	Background:    "#ffffff",
	Surface:       "#f3f4f6",
	TextPrimary:   "#111827",
	TextSecondary: "#6b7280",
	UserBubble:    "#2563eb",
	BotBubble:     "#e5e7eb",
}

var darkPalette = Palette{
	Background:    "#111827",
	Surface:       "#1f2937",
	TextPrimary:   "#f9fafb",
	TextSecondary: "#9ca3af",
	UserBubble:    "#3b82f6",
	BotBubble:     "#374151",
}

// Theme is the fully resolved set of style values consumed by renderers.
type Theme struct {
	Palette        Palette
	PrimaryColor   string
	FontFamily     string
	FontSizePx     int
	BorderRadiusPx int
	Position       string
	RightToLeft    bool
}

// ResolveTheme merges the base palette for the requested mode with the tenant
// configuration. Each field falls back to its built-in default independently,
// so a partially filled configuration still yields a complete theme. A nil
// configuration yields the full default theme.
func ResolveTheme(darkMode bool, language string, configuration *Config) Theme {
	basePalette := lightPalette
	if darkMode {
		basePalette = darkPalette
	}

	resolved := Theme{
		Palette:        basePalette,
		PrimaryColor:   defaultPrimaryColor,
		FontFamily:     defaultFontFamily,
		FontSizePx:     defaultFontSizePx,
		BorderRadiusPx: defaultBorderRadiusPx,
		Position:       defaultPosition,
		RightToLeft:    IsRightToLeft(language),
	}
	if configuration == nil {
		return resolved
	}

	if trimmedColor := strings.TrimSpace(configuration.PrimaryColor); trimmedColor != "" {
		resolved.PrimaryColor = trimmedColor
	}
	if trimmedFontFamily := strings.TrimSpace(configuration.FontFamily); trimmedFontFamily != "" {
		resolved.FontFamily = trimmedFontFamily
	}
	if configuration.FontSize > 0 {
		resolved.FontSizePx = configuration.FontSize
	}
	if configuration.BorderRadius > 0 {
		resolved.BorderRadiusPx = configuration.BorderRadius
	}
	if trimmedPosition := strings.ToLower(strings.TrimSpace(configuration.Position)); trimmedPosition == "left" || trimmedPosition == "right" {
		resolved.Position = trimmedPosition
	}

	return resolved
}
