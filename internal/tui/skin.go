package tui

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"
)

// Skin is a color theme loaded from ~/.config/cardeck/skins/<name>.yml.
// Colors are lipgloss color strings: ANSI numbers ("39") or hex ("#49E209").
type Skin struct {
	Name     string `yaml:"name"`
	Accent   string `yaml:"accent"`
	Like     string `yaml:"like"`
	Pass     string `yaml:"pass"`
	Muted    string `yaml:"muted"`
	Text     string `yaml:"text"`
	Bar      string `yaml:"bar"`
	CardEdge string `yaml:"card_edge"`
	CardBack string `yaml:"card_back"`
}

// DefaultSkin is used when no skin file is found.
var DefaultSkin = Skin{
	Name:     "default",
	Accent:   "#00CAC7",
	Like:     "42",
	Pass:     "196",
	Muted:    "244",
	Text:     "255",
	Bar:      "17",
	CardEdge: "39",
	CardBack: "99",
}

// Active colors. InitializeSkin replaces them.
var (
	ColorAccent   lipgloss.Color
	ColorLike     lipgloss.Color
	ColorPass     lipgloss.Color
	ColorGray     lipgloss.Color
	ColorWhite    lipgloss.Color
	ColorNavy     lipgloss.Color
	ColorCardEdge lipgloss.Color
	ColorCardBack lipgloss.Color
)

func init() {
	applySkin(DefaultSkin)
}

// InitializeSkin loads the named skin from configDir/skins. The default skin
// stays active when the name is empty, "default", or the file is missing.
func InitializeSkin(name, configDir string) error {
	if name == "" || name == DefaultSkin.Name {
		applySkin(DefaultSkin)
		return nil
	}
	skin, err := LoadSkin(filepath.Join(configDir, "skins", name+".yml"))
	if err != nil {
		applySkin(DefaultSkin)
		return err
	}
	applySkin(skin)
	return nil
}

// LoadSkin reads a skin file. Unset colors fall back to the default skin.
func LoadSkin(path string) (Skin, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Skin{}, fmt.Errorf("skin file %s not found", path)
		}
		return Skin{}, err
	}

	skin := DefaultSkin
	if err := yaml.Unmarshal(data, &skin); err != nil {
		return Skin{}, fmt.Errorf("parse skin %s: %w", path, err)
	}
	return skin, nil
}

func applySkin(s Skin) {
	ColorAccent = lipgloss.Color(s.Accent)
	ColorLike = lipgloss.Color(s.Like)
	ColorPass = lipgloss.Color(s.Pass)
	ColorGray = lipgloss.Color(s.Muted)
	ColorWhite = lipgloss.Color(s.Text)
	ColorNavy = lipgloss.Color(s.Bar)
	ColorCardEdge = lipgloss.Color(s.CardEdge)
	ColorCardBack = lipgloss.Color(s.CardBack)
}
