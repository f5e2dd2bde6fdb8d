package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kballard/go-shellquote"
	"github.com/spf13/viper"

	"github.com/yorozuya-cybersecurity/auditfix/internal/scanners"
)

// Keys shared by flags, environment and .env
const (
	KeyFix              = "fix"
	KeyOutputPath       = "output-path"
	KeyWorkingDirectory = "working-directory"
	KeyWorkspace        = "workspace"
	KeyCommand          = "command"
	KeyJSONOutputPath   = "json-output-path"
	KeyCheckVersion     = "check-version"
	KeyDebug            = "debug"
)

// Config is the resolved configuration of one run
type Config struct {
	Fix              bool
	OutputPath       string
	WorkingDirectory string
	Workspace        string
	Command          string
	JSONOutputPath   string
	CheckVersion     bool
	Debug            bool
}

// envNames lists the variables read for each key, first match wins.
// INPUT_* are the GitHub Action inputs, which keep their dashes.
var envNames = map[string][]string{
	KeyFix:              {"AUDITFIX_FIX", "INPUT_FIX"},
	KeyOutputPath:       {"AUDITFIX_OUTPUT_PATH", "INPUT_OUTPUT-PATH"},
	KeyWorkingDirectory: {"AUDITFIX_WORKING_DIRECTORY", "INPUT_WORKING-DIRECTORY"},
	KeyWorkspace:        {"AUDITFIX_WORKSPACE", "GITHUB_WORKSPACE"},
	KeyCommand:          {"AUDITFIX_COMMAND"},
	KeyJSONOutputPath:   {"AUDITFIX_JSON_OUTPUT_PATH"},
	KeyCheckVersion:     {"AUDITFIX_CHECK_VERSION"},
	KeyDebug:            {"AUDITFIX_DEBUG", "RUNNER_DEBUG"},
}

// Bind registers defaults and environment names on v
func Bind(v *viper.Viper) error {
	v.SetDefault(KeyFix, true)
	v.SetDefault(KeyCommand, scanners.DefaultCommand)
	v.SetDefault(KeyCheckVersion, true)
	v.SetDefault(KeyDebug, false)

	for key, names := range envNames {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}

// LoadDotEnv loads path into the process environment. A missing file is not an error,
// and variables already set are kept.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load reads and validates the configuration bound on v
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		Fix:              v.GetBool(KeyFix),
		OutputPath:       strings.TrimSpace(v.GetString(KeyOutputPath)),
		WorkingDirectory: strings.TrimSpace(v.GetString(KeyWorkingDirectory)),
		Workspace:        strings.TrimSpace(v.GetString(KeyWorkspace)),
		Command:          strings.TrimSpace(v.GetString(KeyCommand)),
		JSONOutputPath:   strings.TrimSpace(v.GetString(KeyJSONOutputPath)),
		CheckVersion:     v.GetBool(KeyCheckVersion),
		Debug:            v.GetBool(KeyDebug),
	}

	if cfg.Workspace == "" {
		wd, err := os.Getwd()
		if err != nil {
			return cfg, fmt.Errorf("determine workspace: %w", err)
		}
		cfg.Workspace = wd
	}
	ws, err := filepath.Abs(cfg.Workspace)
	if err != nil {
		return cfg, fmt.Errorf("resolve workspace: %w", err)
	}
	cfg.Workspace = ws

	switch {
	case cfg.WorkingDirectory == "":
		cfg.WorkingDirectory = cfg.Workspace
	case !filepath.IsAbs(cfg.WorkingDirectory):
		cfg.WorkingDirectory = filepath.Join(cfg.Workspace, cfg.WorkingDirectory)
	}

	if cfg.Command == "" {
		cfg.Command = scanners.DefaultCommand
	}
	words, err := shellquote.Split(cfg.Command)
	if err != nil {
		return cfg, fmt.Errorf("invalid %s %q: %w", KeyCommand, cfg.Command, err)
	}
	if len(words) == 0 || words[0] == "" {
		return cfg, fmt.Errorf("invalid %s %q: no program", KeyCommand, cfg.Command)
	}

	return cfg, nil
}
