package access

import (
	"context"
	"log/slog"
	"time"

	"github.com/yourorg/attendbot/internal/command"
	"github.com/yourorg/attendbot/internal/identity"
	"github.com/yourorg/attendbot/internal/ledger"
)

// Service records attendance events and answers history queries over the
// access ledgers.
type Service struct {
	store    ledger.Store
	resolver identity.Resolver
	logger   *slog.Logger
}

func NewService(store ledger.Store, resolver identity.Resolver, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, resolver: resolver, logger: logger}
}

// HandleMessage parses one inbound message and, when it carries an event,
// appends it to the actor's ledger. A message that matches no form is
// dropped silently; an unresolvable sender drops the event without a write.
func (s *Service) HandleMessage(ctx context.Context, msg Message) (bool, error) {
	ev, ok, err := ParseMessage(ctx, msg, s.resolver)
	if err != nil {
		s.logger.Warn("event dropped, sender unresolvable", "handle", msg.SenderHandle, "error", err)
		return false, err
	}
	if !ok {
		s.logger.Debug("message matches no event form", "text", msg.Text)
		return false, nil
	}
	if err := s.store.Append(ev.Name, ev.Row()); err != nil {
		return false, err
	}
	s.logger.Info("access event recorded", "actor", ev.Name, "kind", string(ev.Kind))
	return true, nil
}

// Query resolves the sender to an actor name, reads that actor's full
// ledger, and aggregates it over the requested window.
// ledger.ErrNotFound means the actor has no history yet.
func (s *Service) Query(ctx context.Context, senderHandle string, q command.QuerySpec, now time.Time) (Summary, error) {
	name, err := s.resolver.Resolve(ctx, senderHandle)
	if err != nil {
		return Summary{}, err
	}
	rows, err := s.store.ReadAll(name)
	if err != nil {
		return Summary{}, err
	}
	return Aggregate(rows, q, now), nil
}
