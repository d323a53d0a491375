// Package common provides shared utilities for command implementations.
package common

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"

	"github.com/jonesrussell/north-cloud/feeds/internal/config"
	"github.com/jonesrussell/north-cloud/feeds/internal/logger"
)

// ErrIncompleteDeps is returned by Validate when the pipeline cannot be
// wired. The message names the missing piece.
var ErrIncompleteDeps = errors.New("incomplete command dependencies")

// CommandDeps holds common dependencies for all commands.
type CommandDeps struct {
	Logger logger.Logger
	Config *config.Config
}

// NewCommandDeps loads configuration from the global viper instance and
// builds the logger.
func NewCommandDeps() (CommandDeps, error) {
	return NewCommandDepsFrom(viper.GetViper())
}

// NewCommandDepsFrom loads configuration from v and builds the logger.
func NewCommandDepsFrom(v *viper.Viper) (CommandDeps, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return CommandDeps{}, fmt.Errorf("load config: %w", err)
	}

	logCfg := cfg.Logger
	if cfg.App.Debug {
		logCfg.Level = "debug"
		logCfg.Development = true
	}
	log, err := logger.New(logCfg)
	if err != nil {
		return CommandDeps{}, fmt.Errorf("create logger: %w", err)
	}

	deps := CommandDeps{
		Logger: log.With(logger.String("service", cfg.App.Name)),
		Config: cfg,
	}
	return deps, deps.Validate()
}

// Validate checks that a pipeline can be built from d.
func (d CommandDeps) Validate() error {
	switch {
	case d.Logger == nil:
		return fmt.Errorf("%w: no logger", ErrIncompleteDeps)
	case d.Config == nil:
		return fmt.Errorf("%w: no config", ErrIncompleteDeps)
	}
	return nil
}
