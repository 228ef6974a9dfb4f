// Package config resolves obsimg settings from defaults, the YAML config
// file and command-line flags, in ascending precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/obsimg/obsimg/internal/utils"
)

type Config struct {
	DownloadURL        string `yaml:"download_url"`
	ImageName          string `yaml:"image_name"`
	Arch               string `yaml:"arch"`
	TargetDir          string `yaml:"target_dir"`
	Profile            string `yaml:"profile"`
	Extension          string `yaml:"extension"`
	ChecksumExtension  string `yaml:"checksum_extension"`
	ConditionsWaitTime int    `yaml:"conditions_wait_time"`
	NoColor            bool   `yaml:"no_color"`
	LogLevel           string `yaml:"log_level"`
}

const (
	configDir  = ".config/obsimg"
	configFile = "config.yaml"
)

// Accepted image extensions, in resolution priority order.
var DefaultExtensions = []string{"vhdfixed.xz", "raw.xz", "tar.gz", "qcow2"}

var DefaultChecksumExtensions = []string{"sha256"}

func Default() Config {
	return Config{
		DownloadURL: "https://provo-mirror.opensuse.org/repositories/Cloud:/Images:/Leap_15.0/images/",
		Arch:        "x86_64",
		TargetDir:   utils.ExpandHome("~/obsimg/images"),
		LogLevel:    "info",
	}
}

// DefaultPath returns ~/.config/obsimg/config.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, configDir, configFile)
}

// Load reads a config file and merges it over the defaults. An empty path
// falls back to DefaultPath; a missing file at the default location is fine,
// an explicitly requested file must exist.
func Load(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return cfg, fmt.Errorf("failed to unmarshal config file %s: %w", path, err)
	}

	return Merge(cfg, fileCfg), nil
}

// Merge lays over's non-zero fields on top of base.
func Merge(base, over Config) Config {
	out := base
	if over.DownloadURL != "" {
		out.DownloadURL = over.DownloadURL
	}
	if over.ImageName != "" {
		out.ImageName = over.ImageName
	}
	if over.Arch != "" {
		out.Arch = over.Arch
	}
	if over.TargetDir != "" {
		out.TargetDir = utils.ExpandHome(over.TargetDir)
	}
	if over.Profile != "" {
		out.Profile = over.Profile
	}
	if over.Extension != "" {
		out.Extension = over.Extension
	}
	if over.ChecksumExtension != "" {
		out.ChecksumExtension = over.ChecksumExtension
	}
	if over.ConditionsWaitTime != 0 {
		out.ConditionsWaitTime = over.ConditionsWaitTime
	}
	if over.NoColor {
		out.NoColor = true
	}
	if over.LogLevel != "" {
		out.LogLevel = over.LogLevel
	}
	return out
}

// Extensions returns the accepted image extensions, honoring a configured
// override.
func (c Config) Extensions() []string {
	if c.Extension != "" {
		return []string{c.Extension}
	}
	return DefaultExtensions
}

// ChecksumExtensions returns the accepted checksum sidecar extensions.
func (c Config) ChecksumExtensions() []string {
	if c.ChecksumExtension != "" {
		return []string{c.ChecksumExtension}
	}
	return DefaultChecksumExtensions
}
