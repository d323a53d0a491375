// Package commands accepts operator commands from outside the process and
// routes them to the refresh orchestrator.
package commands

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/jonesrussell/north-cloud/feeds/internal/logger"
	"github.com/jonesrussell/north-cloud/feeds/internal/refresh"
)

// Name identifies a command.
type Name string

const (
	Refresh    Name = "refresh"
	Invalidate Name = "invalidate"
)

var (
	// ErrUnknownCommand is returned for command names with no handler.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrInvalidCommand is returned when a payload cannot be decoded.
	ErrInvalidCommand = errors.New("invalid command payload")
)

// Refresher is the orchestrator surface commands drive.
type Refresher interface {
	Tick(ctx context.Context) (*refresh.TickReport, error)
	ForceRefresh(ctx context.Context, names []string) (*refresh.TickReport, error)
	Invalidate(ctx context.Context, name string) error
}

// Command is the wire form of an inbound command.
type Command struct {
	Name    Name           `json:"command" binding:"required"`
	Payload map[string]any `json:"payload"`
}

// RefreshPayload optionally names sources to refresh regardless of TTL.
type RefreshPayload struct {
	Sources []string `mapstructure:"sources"`
}

// InvalidatePayload names the source whose refresh marker is cleared.
type InvalidatePayload struct {
	Source string `mapstructure:"source"`
}

// InvalidateResult acknowledges an invalidate command.
type InvalidateResult struct {
	Source      string `json:"source"`
	Invalidated bool   `json:"invalidated"`
}

// Handler executes commands.
type Handler struct {
	refresher Refresher
	logger    logger.Logger
}

// NewHandler creates a Handler.
func NewHandler(r Refresher, log logger.Logger) *Handler {
	return &Handler{refresher: r, logger: log.With(logger.Component("commands"))}
}

// Names lists the commands the handler accepts.
func (h *Handler) Names() []string {
	names := []string{string(Invalidate), string(Refresh)}
	slices.Sort(names)
	return names
}

// Handle runs cmd and returns its result: a *refresh.TickReport for refresh
// and an InvalidateResult for invalidate.
func (h *Handler) Handle(ctx context.Context, cmd Command) (any, error) {
	log := h.logger.With(logger.String("command", string(cmd.Name)))

	switch cmd.Name {
	case Refresh:
		var p RefreshPayload
		if err := decode(cmd.Payload, &p); err != nil {
			return nil, err
		}
		log.Info("Refresh requested", logger.Strings("sources", p.Sources))
		if len(p.Sources) == 0 {
			return h.refresher.Tick(ctx)
		}
		return h.refresher.ForceRefresh(ctx, p.Sources)

	case Invalidate:
		var p InvalidatePayload
		if err := decode(cmd.Payload, &p); err != nil {
			return nil, err
		}
		p.Source = strings.TrimSpace(p.Source)
		if p.Source == "" {
			return nil, fmt.Errorf("%w: source is required", ErrInvalidCommand)
		}
		if err := h.refresher.Invalidate(ctx, p.Source); err != nil {
			return nil, err
		}
		log.Info("Invalidate applied", logger.Source(p.Source))
		return InvalidateResult{Source: p.Source, Invalidated: true}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Name)
	}
}

func decode(payload map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      out,
		ErrorUnused: true,
		DecodeHook:  mapstructure.StringToSliceHookFunc(","),
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	if err = decoder.Decode(payload); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}
	return nil
}
