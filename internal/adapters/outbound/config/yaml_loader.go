package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/subosito/gotenv"
	"gopkg.in/yaml.v3"

	"github.com/reflectsonar/reflectsonar/internal/domain"
)

const (
	// FileName is the per-directory config file.
	FileName = ".reflectsonar.yaml"
	// UserFile is the config file below $XDG_CONFIG_HOME.
	UserFile = "reflectsonar/config.yaml"
	// DotEnvFile is read from the working directory when present.
	DotEnvFile = ".env"
)

// Environment variables, first match wins within each group.
var (
	envURL      = []string{"SONARQUBE_URL", "SONAR_HOST_URL"}
	envToken    = []string{"SONARQUBE_TOKEN", "SONAR_TOKEN"}
	envUsername = []string{"SONARQUBE_USERNAME"}
	envPassword = []string{"SONARQUBE_PASSWORD"}
)

// YAMLLoader implements domain.ConfigLoader for YAML files.
type YAMLLoader struct {
	dir    string
	getenv func(string) string
}

// New creates a YAMLLoader rooted at the working directory.
func New() *YAMLLoader { return &YAMLLoader{dir: ".", getenv: os.Getenv} }

// NewInDir creates a YAMLLoader that looks for FileName and DotEnvFile in dir.
func NewInDir(dir string) *YAMLLoader { return &YAMLLoader{dir: dir, getenv: os.Getenv} }

// Load decodes path, or the first of ./.reflectsonar.yaml and the user config
// when path is empty, over DefaultConfig. An explicit path must exist; a
// missing default file yields the defaults.
func (l *YAMLLoader) Load(path string) (domain.Config, error) {
	explicit := path != ""
	if !explicit {
		path = l.findFile()
	}
	if path == "" {
		return domain.DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return domain.DefaultConfig(), nil
		}
		return domain.Config{}, fmt.Errorf("reading config: %w", err)
	}

	// Keys present in the file replace defaults, zero values included.
	cfg := domain.DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return domain.Config{}, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}

	if err := cfg.Validate(); err != nil {
		return domain.Config{}, fmt.Errorf("invalid %s: %w", filepath.Base(path), err)
	}
	return cfg, nil
}

// Resolve layers every source: defaults, config file, .env, environment,
// then flags. Non-zero flag fields win.
func (l *YAMLLoader) Resolve(path string, flags domain.Config) (domain.Config, error) {
	cfg, err := l.Load(path)
	if err != nil {
		return domain.Config{}, err
	}
	if err := l.loadDotEnv(); err != nil {
		return domain.Config{}, err
	}
	cfg = cfg.Merge(l.fromEnv()).Merge(flags)
	if err := cfg.Validate(); err != nil {
		return domain.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (l *YAMLLoader) findFile() string {
	local := filepath.Join(l.dir, FileName)
	if _, err := os.Stat(local); err == nil {
		return local
	}
	if user, err := xdg.SearchConfigFile(UserFile); err == nil {
		return user
	}
	return ""
}

// loadDotEnv exports .env entries that are not already set.
func (l *YAMLLoader) loadDotEnv() error {
	err := gotenv.Load(filepath.Join(l.dir, DotEnvFile))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("reading %s: %w", DotEnvFile, err)
	}
	return nil
}

func (l *YAMLLoader) fromEnv() domain.Config {
	return domain.Config{
		ServerURL: l.first(envURL),
		Token:     l.first(envToken),
		Username:  l.first(envUsername),
		Password:  l.first(envPassword),
	}
}

func (l *YAMLLoader) first(names []string) string {
	for _, n := range names {
		if v := l.getenv(n); v != "" {
			return v
		}
	}
	return ""
}

// UserConfigPath returns where the user config lives, creating parent
// directories as needed.
func UserConfigPath() (string, error) {
	return xdg.ConfigFile(UserFile)
}
