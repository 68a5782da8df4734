// Package config loads and validates the optional .mauidev.yaml file.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// FileName is the name of the configuration file at the repository root.
const FileName = ".mauidev.yaml"

// rootMarkers identify the repository root when walking upward.
var rootMarkers = []string{FileName, "AdjustSdk.nuspec"}

// Environment overrides, named after the variables the release scripts
// have always honoured.
const (
	EnvAndroidAVD = "ANDROID_AVD"
	EnvIOSSim     = "IOS_SIM"
	EnvDotnet     = "MAUIDEV_DOTNET"
)

// Default values.
const (
	DefaultDotnet            = "net8.0"
	DefaultRetryAttempts     = 3
	DefaultRetryDelay        = 2 * time.Second
	DefaultMaxOutput         = 1 << 20 // 1 MB
	DefaultPollInterval      = 100 * time.Millisecond
	DefaultAVD               = "Pixel_5_API_34"
	DefaultBootWait          = 5 * time.Second
	DefaultSimulator         = "iPhone 15"
	DefaultRuntimeIdentifier = "iossimulator-arm64"
	DefaultReportsKeep       = 5
)

// DefaultShutdown stops the dotnet build server between retries.
var DefaultShutdown = []string{"dotnet", "build-server", "shutdown"}

// Config holds the parsed .mauidev.yaml configuration.
// All fields are optional; zero values represent defaults.
type Config struct {
	Version         int           `yaml:"version"`
	Dotnet          string        `yaml:"dotnet"` // target framework moniker prefix, e.g. net8.0
	Retry           RetryConfig   `yaml:"retry"`
	RawMaxOutput    int           `yaml:"max_output"`    // bytes of transcript kept per attempt
	RawPollInterval string        `yaml:"poll_interval"` // e.g. "100ms"
	Android         AndroidConfig `yaml:"android"`
	IOS             IOSConfig     `yaml:"ios"`
	NuGet           NuGetConfig   `yaml:"nuget"`
	Reports         ReportsConfig `yaml:"reports"`
}

// RetryConfig controls transient-failure recovery.
type RetryConfig struct {
	Attempts int      `yaml:"attempts"`
	RawDelay string   `yaml:"delay"`
	Disabled bool     `yaml:"disabled"`
	Patterns []string `yaml:"patterns"` // added to the built-in transient signatures
	Shutdown []string `yaml:"shutdown"` // argv of the build-server shutdown call
}

// AndroidConfig controls emulator handling.
type AndroidConfig struct {
	AVD         string `yaml:"avd"`
	Emulator    string `yaml:"emulator"` // explicit emulator binary
	RawBootWait string `yaml:"boot_wait"`
}

// IOSConfig controls simulator handling.
type IOSConfig struct {
	Simulator         string `yaml:"simulator"`
	RuntimeIdentifier string `yaml:"runtime_identifier"`
}

// NuGetConfig locates the local package source and install cache.
type NuGetConfig struct {
	LocalSource string `yaml:"local_source"`
	Packages    string `yaml:"packages"`
}

// ReportsConfig controls run report retention in memory.
type ReportsConfig struct {
	Keep int `yaml:"keep"`
}

// Toolchain returns the explicit toolchain, honouring MAUIDEV_DOTNET.
func (c *Config) Toolchain() string {
	if v := strings.TrimSpace(os.Getenv(EnvDotnet)); v != "" {
		return v
	}
	if c.Dotnet != "" {
		return c.Dotnet
	}
	return DefaultDotnet
}

// PinnedToolchain returns the toolchain only when one was chosen through
// MAUIDEV_DOTNET or the config file. Builds leave the framework to the
// project files when it is empty.
func (c *Config) PinnedToolchain() string {
	if v := strings.TrimSpace(os.Getenv(EnvDotnet)); v != "" {
		return v
	}
	return c.Dotnet
}

// RetryAttempts returns the maximum number of invocations per command.
func (c *Config) RetryAttempts() int {
	if c.Retry.Attempts > 0 {
		return c.Retry.Attempts
	}
	return DefaultRetryAttempts
}

// RetryDelay returns the pause between a build-server shutdown and the
// next attempt.
func (c *Config) RetryDelay() time.Duration {
	return parseDuration(c.Retry.RawDelay, DefaultRetryDelay)
}

// ShutdownArgv returns the build-server shutdown command.
func (c *Config) ShutdownArgv() []string {
	if len(c.Retry.Shutdown) > 0 {
		return c.Retry.Shutdown
	}
	return DefaultShutdown
}

// MaxOutputBytes returns the configured transcript cap or the default.
func (c *Config) MaxOutputBytes() int {
	if c.RawMaxOutput > 0 {
		return c.RawMaxOutput
	}
	return DefaultMaxOutput
}

// PollInterval returns the pty readiness timeout.
func (c *Config) PollInterval() time.Duration {
	return parseDuration(c.RawPollInterval, DefaultPollInterval)
}

// AVD returns the Android virtual device name.
func (c *Config) AVD() string {
	if v := os.Getenv(EnvAndroidAVD); v != "" {
		return v
	}
	if c.Android.AVD != "" {
		return c.Android.AVD
	}
	return DefaultAVD
}

// BootWait returns how long to wait after launching the emulator.
func (c *Config) BootWait() time.Duration {
	return parseDuration(c.Android.RawBootWait, DefaultBootWait)
}

// Simulator returns the iOS simulator name.
func (c *Config) Simulator() string {
	if v := os.Getenv(EnvIOSSim); v != "" {
		return v
	}
	if c.IOS.Simulator != "" {
		return c.IOS.Simulator
	}
	return DefaultSimulator
}

// RuntimeIdentifier returns the iOS simulator runtime identifier.
func (c *Config) RuntimeIdentifier() string {
	if c.IOS.RuntimeIdentifier != "" {
		return c.IOS.RuntimeIdentifier
	}
	return DefaultRuntimeIdentifier
}

// LocalSource returns the local NuGet feed directory.
func (c *Config) LocalSource() string {
	if c.NuGet.LocalSource != "" {
		return expandHome(c.NuGet.LocalSource)
	}
	return filepath.Join(nugetHome(), "local")
}

// PackagesDir returns the NuGet global packages folder.
func (c *Config) PackagesDir() string {
	if c.NuGet.Packages != "" {
		return expandHome(c.NuGet.Packages)
	}
	return filepath.Join(nugetHome(), "packages")
}

// ReportsKeep returns how many run reports stay cached in memory.
func (c *Config) ReportsKeep() int {
	if c.Reports.Keep > 0 {
		return c.Reports.Keep
	}
	return DefaultReportsKeep
}

func parseDuration(raw string, def time.Duration) time.Duration {
	if raw != "" {
		d, err := time.ParseDuration(raw)
		if err == nil && d >= 0 {
			return d
		}
	}
	return def
}

func nugetHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".nuget"
	}
	return filepath.Join(home, ".nuget")
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

// LoadResult holds the parsed config and the discovered repository root.
type LoadResult struct {
	Config   *Config
	RepoRoot string // directory containing .mauidev.yaml or AdjustSdk.nuspec; falls back to workspace
}

// Load reads .mauidev.yaml from the repository root.
// The repository root is discovered by walking upward from workspace
// looking for a root marker. If no config file exists, a default Config is
// returned.
func Load(workspace string) (*LoadResult, error) {
	root, err := findRepoRoot(workspace)
	if err != nil {
		root, err = filepath.Abs(workspace)
		if err != nil {
			return nil, eris.Wrapf(err, "resolving workspace %s", workspace)
		}
	}

	path := filepath.Join(root, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &LoadResult{Config: &Config{}, RepoRoot: root}, nil
		}
		return nil, eris.Wrapf(err, "reading %s", FileName)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, eris.Wrapf(err, "parsing %s", FileName)
	}
	if err := cfg.Validate(); err != nil {
		return nil, eris.Wrapf(err, "invalid %s", FileName)
	}
	return &LoadResult{Config: cfg, RepoRoot: root}, nil
}

// Validate rejects values that cannot be defaulted sensibly.
func (c *Config) Validate() error {
	if c.Retry.Attempts < 0 {
		return eris.Errorf("retry.attempts must not be negative, got %d", c.Retry.Attempts)
	}
	for _, raw := range []string{c.Retry.RawDelay, c.RawPollInterval, c.Android.RawBootWait} {
		if raw == "" {
			continue
		}
		if _, err := time.ParseDuration(raw); err != nil {
			return eris.Wrapf(err, "bad duration %q", raw)
		}
	}
	for _, p := range c.Retry.Patterns {
		if strings.TrimSpace(p) == "" {
			return eris.New("retry.patterns must not contain empty entries")
		}
	}
	return nil
}

// findRepoRoot walks upward from dir looking for a root marker.
func findRepoRoot(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		for _, marker := range rootMarkers {
			if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
				return dir, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", eris.New("repository root not found")
		}
		dir = parent
	}
}
