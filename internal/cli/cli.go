// Package cli renders pellucid's terminal output: plan listings,
// diagnostic blocks for structured errors, and the styling that backs
// both. Rendering degrades to plain text on pipes and CI runners so
// plan output stays diffable.
package cli

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

// OutputMode selects how plan and diagnostic output is rendered.
type OutputMode int

const (
	// ModeTTY renders styled output for interactive terminals.
	ModeTTY OutputMode = iota
	// ModePlain renders unstyled text, the form plan output takes on
	// pipes and in CI.
	ModePlain
	// ModeJSON renders machine-readable output, selected by --json.
	ModeJSON
)

// Config holds the resolved output mode and destination for one run.
type Config struct {
	Mode   OutputMode
	Writer io.Writer
}

// DefaultConfig detects the output mode from the environment: styled
// when stdout is a terminal, plain otherwise. NO_COLOR
// (https://no-color.org/) and TERM=dumb force plain. JSON is never
// detected; it is requested explicitly through NewConfigWithMode.
func DefaultConfig() *Config {
	return &Config{
		Mode:   detectMode(os.Stdout),
		Writer: os.Stdout,
	}
}

func detectMode(f *os.File) OutputMode {
	if os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb" {
		return ModePlain
	}
	if isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()) {
		return ModeTTY
	}
	return ModePlain
}

// NewConfigWithMode returns the detected configuration with the mode
// overridden, for --json and --plain and for tests that need stable
// output.
func NewConfigWithMode(mode OutputMode) *Config {
	cfg := DefaultConfig()
	cfg.Mode = mode
	return cfg
}

// IsTTY reports whether output is styled for an interactive terminal.
func (c *Config) IsTTY() bool { return c.Mode == ModeTTY }

// IsPlain reports whether output is unstyled text.
func (c *Config) IsPlain() bool { return c.Mode == ModePlain }

// IsJSON reports whether output is machine-readable.
func (c *Config) IsJSON() bool { return c.Mode == ModeJSON }

// defaultCfg is the process-wide configuration, detected on first use.
var defaultCfg *Config

// Default returns the process-wide configuration.
func Default() *Config {
	if defaultCfg == nil {
		defaultCfg = DefaultConfig()
	}
	return defaultCfg
}

// SetDefault replaces the process-wide configuration. Commands call it
// when a flag overrides detection; tests call it to pin the mode.
func SetDefault(cfg *Config) {
	defaultCfg = cfg
}

// EnableColors reports whether styled output is in effect.
func EnableColors() bool {
	return Default().IsTTY()
}
