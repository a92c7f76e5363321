package internal

import "io"

// Mode selects what Run does.
type Mode string

// Run modes.
const (
	ModeBuild Mode = "build"
	ModeWatch Mode = "watch"
	ModeServe Mode = "serve"
	ModeMCP   Mode = "mcp"
	ModeList  Mode = "ls"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config *Config
	mode   Mode
	out    io.Writer
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithMode sets the run mode. The default is ModeServe.
func WithMode(mode Mode) Option {
	return func(a *application) {
		a.mode = mode
	}
}

// WithOutput sets where ModeList prints. The default is stdout.
func WithOutput(w io.Writer) Option {
	return func(a *application) {
		a.out = w
	}
}
