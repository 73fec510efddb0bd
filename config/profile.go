// config/profile.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	defaultProfileName   = "default"
	defaultProfileTarget = "stack_overflow_surveys"
)

// Profile is one output entry of a dbt style profiles.yml.
type Profile struct {
	Type     string `yaml:"type"`
	Host     string `yaml:"host"`
	Port     any    `yaml:"port"` // dbt allows both 5432 and "5432"
	User     string `yaml:"user"`
	Pass     string `yaml:"pass"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
}

type profileFile map[string]struct {
	Target  string             `yaml:"target"`
	Outputs map[string]Profile `yaml:"outputs"`
}

// LoadProfile reads profiles.yml at path and returns outputs[target] of the named profile.
// A leading "~" in path is expanded to the user's home directory.
func LoadProfile(path, name, target string) (*Profile, error) {
	if name == "" {
		name = defaultProfileName
	}
	if target == "" {
		target = defaultProfileTarget
	}

	expanded, err := expandHome(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile file %s: %w", expanded, err)
	}

	var profiles profileFile
	if err := yaml.Unmarshal(data, &profiles); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profile file %s: %w", expanded, err)
	}
	p, ok := profiles[name]
	if !ok {
		return nil, fmt.Errorf("profile %q not found in %s", name, expanded)
	}
	out, ok := p.Outputs[target]
	if !ok {
		return nil, fmt.Errorf("output %q not found in profile %q", target, name)
	}
	return &out, nil
}

// mergeProfile fills connection fields from p. Values already set win.
func (d *DatabaseConfig) mergeProfile(p *Profile) {
	set := func(field *string, value string) {
		if *field == "" {
			*field = value
		}
	}
	switch strings.ToLower(p.Type) {
	case "postgres", "postgresql", "redshift":
		set(&d.Driver, "postgres")
	case "mysql", "mariadb":
		set(&d.Driver, "mysql")
	case "sqlite":
		set(&d.Driver, "sqlite")
	}
	set(&d.Host, p.Host)
	if p.Port != nil {
		set(&d.Port, fmt.Sprint(p.Port))
	}
	set(&d.User, p.User)
	if p.Pass != "" {
		set(&d.Password, p.Pass)
	} else {
		set(&d.Password, p.Password)
	}
	set(&d.DBName, p.DBName)
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
