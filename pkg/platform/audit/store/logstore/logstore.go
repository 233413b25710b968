// Package logstore writes audit events to a structured logger. It is the
// sink used when no event feed is configured.
package logstore

import (
	"context"
	"log/slog"

	audit "crboard/pkg/platform/audit"
)

type Store struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Store {
	return &Store{logger: logger}
}

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	s.logger.InfoContext(ctx, "change event",
		"action", event.Action,
		"cr_id", event.Subject,
		"system", event.System,
		"version", event.Version,
		"actor", event.ActorID,
		"fields", event.Fields,
	)
	return nil
}
