package board

import (
	"embed"
	"fmt"
	"image/color"
	"sort"
	"strings"

	yaml "gopkg.in/yaml.v3"
)

//go:embed assets/themes.yaml
var themeFiles embed.FS

// Theme is a board color scheme.
type Theme struct {
	Name        string
	Light       color.NRGBA // light squares
	Dark        color.NRGBA // dark squares
	Highlight   color.NRGBA // last-move highlight overlay
	Marker      color.NRGBA // cursor/player marker overlay
	Coordinates color.NRGBA // file/rank labels
}

type themeSpec struct {
	Light       string `yaml:"light"`
	Dark        string `yaml:"dark"`
	Highlight   string `yaml:"highlight"`
	Marker      string `yaml:"marker"`
	Coordinates string `yaml:"coordinates"`
}

type themeFile struct {
	Themes map[string]themeSpec `yaml:"themes"`
}

// DefaultTheme is used when no theme is configured.
const DefaultTheme = "classic"

// LoadTheme resolves a named theme from the embedded catalog.
func LoadTheme(name string) (Theme, error) {
	themes, err := loadThemes()
	if err != nil {
		return Theme{}, err
	}
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		key = DefaultTheme
	}
	theme, ok := themes[key]
	if !ok {
		return Theme{}, fmt.Errorf("board theme %q not found (have: %s)", key, strings.Join(themeNames(themes), ", "))
	}
	return theme, nil
}

func loadThemes() (map[string]Theme, error) {
	raw, err := themeFiles.ReadFile("assets/themes.yaml")
	if err != nil {
		return nil, fmt.Errorf("read embedded themes: %w", err)
	}
	var file themeFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse themes: %w", err)
	}
	themes := make(map[string]Theme, len(file.Themes))
	for name, spec := range file.Themes {
		theme := Theme{Name: name}
		fields := []struct {
			dst *color.NRGBA
			hex string
		}{
			{&theme.Light, spec.Light},
			{&theme.Dark, spec.Dark},
			{&theme.Highlight, spec.Highlight},
			{&theme.Marker, spec.Marker},
			{&theme.Coordinates, spec.Coordinates},
		}
		for _, f := range fields {
			c, err := parseHexColor(f.hex)
			if err != nil {
				return nil, fmt.Errorf("theme %s: %w", name, err)
			}
			*f.dst = c
		}
		themes[strings.ToLower(name)] = theme
	}
	return themes, nil
}

func themeNames(themes map[string]Theme) []string {
	names := make([]string, 0, len(themes))
	for name := range themes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func parseHexColor(s string) (color.NRGBA, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return color.NRGBA{}, fmt.Errorf("malformed color %q", s)
	}
	var rgb [3]uint8
	for i := 0; i < 3; i++ {
		var v int
		for _, ch := range s[i*2 : i*2+2] {
			v <<= 4
			switch {
			case ch >= '0' && ch <= '9':
				v |= int(ch - '0')
			case ch >= 'a' && ch <= 'f':
				v |= int(ch-'a') + 10
			case ch >= 'A' && ch <= 'F':
				v |= int(ch-'A') + 10
			default:
				return color.NRGBA{}, fmt.Errorf("malformed color %q", s)
			}
		}
		rgb[i] = uint8(v)
	}
	return color.NRGBA{R: rgb[0], G: rgb[1], B: rgb[2], A: 255}, nil
}
