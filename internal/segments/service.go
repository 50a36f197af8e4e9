package segments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrInvalidCriteria wraps any criteria document that fails to parse.
var ErrInvalidCriteria = errors.New("segments: invalid criteria")

// ProfileSource lists the profiles criteria are evaluated against.
type ProfileSource interface {
	ListProfiles(ctx context.Context) ([]Profile, error)
}

// Service evaluates stored criteria against current customer profiles.
type Service struct {
	source ProfileSource
	logger *slog.Logger
}

// NewService constructs Service.
func NewService(source ProfileSource, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{source: source, logger: logger}
}

// Preview parses raw criteria and returns the matching profiles.
func (s *Service) Preview(ctx context.Context, raw []byte) ([]Profile, error) {
	c, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCriteria, err)
	}
	profiles, err := s.source.ListProfiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	out := Filter(c, profiles)
	s.logger.Debug("segment preview", slog.Int("profiles", len(profiles)), slog.Int("matched", len(out)))
	return out, nil
}
