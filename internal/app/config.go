package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
)

type fileConfig struct {
	Backend     string                `toml:"backend"`
	TZ          string                `toml:"tz"`
	Output      string                `toml:"output"`
	Fields      string                `toml:"fields"`
	Profile     string                `toml:"profile"`
	BeginTime   string                `toml:"begin_time"`
	EndTime     string                `toml:"end_time"`
	HorizonDays int                   `toml:"horizon_days"`
	Google      googleFileConfig      `toml:"google"`
	ICS         icsFileConfig         `toml:"ics"`
	SQLite      sqliteFileConfig      `toml:"sqlite"`
	Profiles    map[string]fileConfig `toml:"profiles"`
}

type googleFileConfig struct {
	Credentials string `toml:"credentials"`
	Token       string `toml:"token"`
}

type icsFileConfig struct {
	Dir     string `toml:"dir"`
	Primary string `toml:"primary"`
}

type sqliteFileConfig struct {
	Path string `toml:"path"`
}

func resolveGlobalOptions(cmd *cobra.Command, defaults *globalOptions) (*globalOptions, error) {
	resolved := *defaults

	profile := firstNonEmpty(env("MEETME_PROFILE"), defaults.Profile)
	if flagValueChanged(cmd, "profile") {
		profile = defaults.Profile
	}
	if profile == "" {
		profile = "default"
	}
	resolved.Profile = profile

	userPath := defaultUserConfigPath()
	projectPath := ".meetme.toml"
	configPath := firstNonEmpty(env("MEETME_CONFIG"), userPath)
	if flagValueChanged(cmd, "config") {
		configPath = defaults.Config
	}

	if cfg, ok, err := readConfigFile(userPath); err != nil {
		return nil, err
	} else if ok {
		applyFileConfig(&resolved, cfg, profile)
	}
	if cfg, ok, err := readConfigFile(projectPath); err != nil {
		return nil, err
	} else if ok {
		applyFileConfig(&resolved, cfg, profile)
	}
	if configPath != "" && configPath != userPath && configPath != projectPath {
		cfg, ok, err := readConfigFile(configPath)
		if err != nil {
			return nil, err
		}
		if !ok && flagValueChanged(cmd, "config") {
			return nil, fmt.Errorf("config file %s not found", configPath)
		}
		if ok {
			applyFileConfig(&resolved, cfg, profile)
		}
	}

	if err := applyEnv(&resolved); err != nil {
		return nil, err
	}
	applyFlags(cmd, &resolved, defaults)

	if resolved.Config == "" {
		resolved.Config = configPath
	}
	if resolved.HorizonDays < 0 {
		return nil, fmt.Errorf("horizon_days must not be negative, got %d", resolved.HorizonDays)
	}
	return &resolved, nil
}

func applyFileConfig(dst *globalOptions, cfg fileConfig, profile string) {
	if p, ok := cfg.Profiles[profile]; ok {
		cfg = mergeFileConfig(cfg, p)
	}
	if cfg.Backend != "" {
		dst.Backend = cfg.Backend
	}
	if cfg.TZ != "" {
		dst.TZ = cfg.TZ
	}
	if cfg.Fields != "" {
		dst.Fields = cfg.Fields
	}
	if cfg.Output != "" {
		setOutputMode(dst, cfg.Output)
	}
	if cfg.BeginTime != "" {
		dst.BeginTime = cfg.BeginTime
	}
	if cfg.EndTime != "" {
		dst.EndTime = cfg.EndTime
	}
	if cfg.HorizonDays != 0 {
		dst.HorizonDays = cfg.HorizonDays
	}
	if cfg.Google.Credentials != "" {
		dst.GoogleCredentials = cfg.Google.Credentials
	}
	if cfg.Google.Token != "" {
		dst.GoogleToken = cfg.Google.Token
	}
	if cfg.ICS.Dir != "" {
		dst.ICSDir = cfg.ICS.Dir
	}
	if cfg.ICS.Primary != "" {
		dst.ICSPrimary = cfg.ICS.Primary
	}
	if cfg.SQLite.Path != "" {
		dst.SQLitePath = cfg.SQLite.Path
	}
}

func mergeFileConfig(base, overlay fileConfig) fileConfig {
	if overlay.Backend != "" {
		base.Backend = overlay.Backend
	}
	if overlay.TZ != "" {
		base.TZ = overlay.TZ
	}
	if overlay.Output != "" {
		base.Output = overlay.Output
	}
	if overlay.Fields != "" {
		base.Fields = overlay.Fields
	}
	if overlay.Profile != "" {
		base.Profile = overlay.Profile
	}
	if overlay.BeginTime != "" {
		base.BeginTime = overlay.BeginTime
	}
	if overlay.EndTime != "" {
		base.EndTime = overlay.EndTime
	}
	if overlay.HorizonDays != 0 {
		base.HorizonDays = overlay.HorizonDays
	}
	if overlay.Google.Credentials != "" {
		base.Google.Credentials = overlay.Google.Credentials
	}
	if overlay.Google.Token != "" {
		base.Google.Token = overlay.Google.Token
	}
	if overlay.ICS.Dir != "" {
		base.ICS.Dir = overlay.ICS.Dir
	}
	if overlay.ICS.Primary != "" {
		base.ICS.Primary = overlay.ICS.Primary
	}
	if overlay.SQLite.Path != "" {
		base.SQLite.Path = overlay.SQLite.Path
	}
	return base
}

func setOutputMode(dst *globalOptions, mode string) {
	switch strings.ToLower(mode) {
	case "json":
		dst.JSON, dst.JSONL, dst.Plain = true, false, false
	case "jsonl":
		dst.JSON, dst.JSONL, dst.Plain = false, true, false
	case "plain":
		dst.JSON, dst.JSONL, dst.Plain = false, false, true
	}
}

func applyEnv(dst *globalOptions) error {
	if v := env("MEETME_BACKEND"); v != "" {
		dst.Backend = v
	}
	if v := env("MEETME_TIMEZONE"); v != "" {
		dst.TZ = v
	}
	if v := env("MEETME_FIELDS"); v != "" {
		dst.Fields = v
	}
	if v := env("MEETME_OUTPUT"); v != "" {
		setOutputMode(dst, v)
	}
	if v := env("MEETME_BEGIN_TIME"); v != "" {
		dst.BeginTime = v
	}
	if v := env("MEETME_END_TIME"); v != "" {
		dst.EndTime = v
	}
	if v := env("MEETME_HORIZON_DAYS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MEETME_HORIZON_DAYS: %w", err)
		}
		dst.HorizonDays = n
	}
	if v := env("MEETME_GOOGLE_CREDENTIALS"); v != "" {
		dst.GoogleCredentials = v
	}
	if v := env("MEETME_GOOGLE_TOKEN"); v != "" {
		dst.GoogleToken = v
	}
	if v := env("MEETME_ICS_DIR"); v != "" {
		dst.ICSDir = v
	}
	if v := env("MEETME_ICS_PRIMARY"); v != "" {
		dst.ICSPrimary = v
	}
	if v := env("MEETME_SQLITE_PATH"); v != "" {
		dst.SQLitePath = v
	}
	return nil
}

func applyFlags(cmd *cobra.Command, dst, fromFlags *globalOptions) {
	copyIfChanged(cmd, "json", func() { dst.JSON = fromFlags.JSON })
	copyIfChanged(cmd, "jsonl", func() { dst.JSONL = fromFlags.JSONL })
	copyIfChanged(cmd, "plain", func() { dst.Plain = fromFlags.Plain })
	copyIfChanged(cmd, "fields", func() { dst.Fields = fromFlags.Fields })
	copyIfChanged(cmd, "quiet", func() { dst.Quiet = fromFlags.Quiet })
	copyIfChanged(cmd, "verbose", func() { dst.Verbose = fromFlags.Verbose })
	copyIfChanged(cmd, "profile", func() { dst.Profile = fromFlags.Profile })
	copyIfChanged(cmd, "config", func() { dst.Config = fromFlags.Config })
	copyIfChanged(cmd, "backend", func() { dst.Backend = fromFlags.Backend })
	copyIfChanged(cmd, "tz", func() { dst.TZ = fromFlags.TZ })
	copyIfChanged(cmd, "timeout", func() { dst.Timeout = fromFlags.Timeout })
	copyIfChanged(cmd, "schema-version", func() { dst.SchemaVersion = fromFlags.SchemaVersion })

	// If exactly one output mode flag is explicitly set, it overrides env/config output mode.
	modeSet := 0
	if flagValueChanged(cmd, "json") && fromFlags.JSON {
		modeSet++
	}
	if flagValueChanged(cmd, "jsonl") && fromFlags.JSONL {
		modeSet++
	}
	if flagValueChanged(cmd, "plain") && fromFlags.Plain {
		modeSet++
	}
	if modeSet == 1 {
		if flagValueChanged(cmd, "json") && fromFlags.JSON {
			setOutputMode(dst, "json")
		}
		if flagValueChanged(cmd, "jsonl") && fromFlags.JSONL {
			setOutputMode(dst, "jsonl")
		}
		if flagValueChanged(cmd, "plain") && fromFlags.Plain {
			setOutputMode(dst, "plain")
		}
	}
}

func copyIfChanged(cmd *cobra.Command, name string, fn func()) {
	if flagValueChanged(cmd, name) {
		fn()
	}
}

func flagValueChanged(cmd *cobra.Command, name string) bool {
	if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
		return true
	}
	if f := cmd.InheritedFlags().Lookup(name); f != nil && f.Changed {
		return true
	}
	return false
}

// readConfigFile reports ok=false for a missing file and an error for one
// that exists but does not parse.
func readConfigFile(path string) (fileConfig, bool, error) {
	if strings.TrimSpace(path) == "" {
		return fileConfig{}, false, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return fileConfig{}, false, nil
	}
	var cfg fileConfig
	if err := toml.Unmarshal(raw, &cfg); err != nil {
		var de *toml.DecodeError
		if errors.As(err, &de) {
			row, col := de.Position()
			return fileConfig{}, false, fmt.Errorf("%s:%d:%d: %s", path, row, col, de.Error())
		}
		return fileConfig{}, false, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, true, nil
}

func defaultUserConfigPath() string {
	if xdg := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); xdg != "" {
		return filepath.Join(xdg, "meetme", "config.toml")
	}
	home := strings.TrimSpace(os.Getenv("HOME"))
	if home == "" {
		return ""
	}
	return filepath.Join(home, ".config", "meetme", "config.toml")
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

func env(k string) string { return strings.TrimSpace(os.Getenv(k)) }

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
