package drafter

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed profile.yaml
var defaultProfile []byte

// Profile is the candidate the drafts are written for.
type Profile struct {
	Name       string   `yaml:"name"`
	Email      string   `yaml:"email"`
	Headline   string   `yaml:"headline"`
	Summary    string   `yaml:"summary"`
	Skills     []string `yaml:"skills"`
	Experience []string `yaml:"experience"`
}

// LoadProfile reads a YAML profile from path, or the built-in profile when
// path is empty.
func LoadProfile(path string) (*Profile, error) {
	data := defaultProfile
	if path != "" {
		var err error
		if data, err = os.ReadFile(path); err != nil {
			return nil, fmt.Errorf("read profile: %w", err)
		}
	}
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse profile: %w", err)
	}
	if strings.TrimSpace(p.Name) == "" {
		return nil, fmt.Errorf("parse profile: name is required")
	}
	for i, s := range p.Skills {
		p.Skills[i] = strings.ToLower(strings.TrimSpace(s))
	}
	return &p, nil
}
