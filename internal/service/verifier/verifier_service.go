// internal/service/verifier/verifier_service.go
package verifier

import (
	"context"
	"database/sql"
	"time"

	"subgate-service/internal/domain/payment"
	"subgate-service/internal/domain/subscription"
	xerrors "subgate-service/internal/pkg/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SubscriptionSweeper is the slice of subscription storage the verifier
// drives between polls.
type SubscriptionSweeper interface {
	ActivateFreeTrialPending(ctx context.Context) ([]uuid.UUID, error)
	MarkOverduePending(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error)
	ListPending(ctx context.Context, cutoff time.Time) ([]subscription.Subscription, error)
}

// EventLedger is the payment-event storage the verifier feeds.
type EventLedger interface {
	Ingest(ctx context.Context, ev *payment.Event) (*payment.Event, error)
	IsMatched(ctx context.Context, eventID uuid.UUID) (bool, error)
	MatchToSubscription(ctx context.Context, eventID, subscriptionID uuid.UUID) (*subscription.Subscription, error)
}

// Config tunes the polling loop.
type Config struct {
	PollInterval   time.Duration
	OverdueAfter   time.Duration
	FetchLimit     int
	SeenCacheLimit int
}

func (c *Config) applyDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = 20 * time.Second
	}
	if c.OverdueAfter <= 0 {
		c.OverdueAfter = 15 * time.Minute
	}
	if c.FetchLimit <= 0 {
		c.FetchLimit = 30
	}
	if c.SeenCacheLimit <= 0 {
		c.SeenCacheLimit = 1000
	}
}

// VerifierService polls payment notification sources, records every
// message as a ledger event and activates the pending subscription whose
// fingerprint amount the payment carries. It also runs the periodic
// sweeps: free/trial auto-activation and overdue timeout.
type VerifierService struct {
	subs    SubscriptionSweeper
	events  EventLedger
	sources []MessageSource
	matcher Matcher
	cfg     Config
	logger  *zap.Logger

	// seen short-circuits re-ingesting message ids already processed this
	// process lifetime. Storage dedup is the real guarantee.
	seen      map[string]bool
	seenOrder []string
}

func NewVerifierService(subs SubscriptionSweeper, events EventLedger, sources []MessageSource, matcher Matcher, cfg Config, logger *zap.Logger) *VerifierService {
	cfg.applyDefaults()
	return &VerifierService{
		subs:    subs,
		events:  events,
		sources: sources,
		matcher: matcher,
		cfg:     cfg,
		logger:  logger,
		seen:    make(map[string]bool),
	}
}

// Run polls until the context is canceled. Errors inside a cycle are
// logged and the loop continues; one bad poll must not stop verification.
func (s *VerifierService) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.logger.Error("verification cycle failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce executes a single verification cycle.
func (s *VerifierService) RunOnce(ctx context.Context) error {
	if ids, err := s.subs.ActivateFreeTrialPending(ctx); err != nil {
		s.logger.Error("free/trial activation sweep failed", zap.Error(err))
	} else if len(ids) > 0 {
		s.logger.Info("free/trial subscriptions activated", zap.Int("count", len(ids)))
	}

	cutoff := time.Now().Add(-s.cfg.OverdueAfter)
	if ids, err := s.subs.MarkOverduePending(ctx, cutoff); err != nil {
		s.logger.Error("overdue sweep failed", zap.Error(err))
	} else if len(ids) > 0 {
		s.logger.Info("pending subscriptions marked overdue", zap.Int("count", len(ids)))
	}

	pending, err := s.subs.ListPending(ctx, cutoff)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}
	byAmount := make(map[int64]uuid.UUID, len(pending))
	for _, sub := range pending {
		byAmount[sub.ExpectedAmountMinor] = sub.ID
	}

	for _, source := range s.sources {
		if err := s.pollSource(ctx, source, byAmount); err != nil {
			s.logger.Error("source poll failed",
				zap.String("source", source.Name()),
				zap.Error(err))
		}
	}
	return nil
}

func (s *VerifierService) pollSource(ctx context.Context, source MessageSource, byAmount map[int64]uuid.UUID) error {
	messages, err := source.Fetch(ctx, s.cfg.FetchLimit)
	if err != nil {
		return err
	}

	for _, msg := range messages {
		match, ok := s.matcher.Match(msg)
		if !ok {
			continue
		}
		var seenKey string
		if id, ok := msg.ExternalID(); ok {
			seenKey = msg.Source + ":" + id
			if s.seen[seenKey] {
				continue
			}
		}
		if err := s.processMatch(ctx, match, byAmount); err != nil {
			// Leave the key unmarked: the next cycle retries and storage
			// dedup keeps reprocessing safe.
			s.logger.Error("failed to process payment match",
				zap.String("source", match.Source),
				zap.Int64("amount_minor", match.AmountMinor),
				zap.Error(err))
			continue
		}
		if seenKey != "" {
			s.markSeen(seenKey)
		}
	}
	return nil
}

func (s *VerifierService) processMatch(ctx context.Context, match payment.Match, byAmount map[int64]uuid.UUID) error {
	ev := &payment.Event{
		Source:      match.Source,
		AmountMinor: match.AmountMinor,
		Payload:     match.Raw.Meta,
		ReceivedAt:  match.ReceivedAt,
	}
	if id, ok := match.Raw.ExternalID(); ok {
		ev.ExternalID = sql.NullString{String: id, Valid: true}
	}
	stored, err := s.events.Ingest(ctx, ev)
	if err != nil {
		return err
	}
	if matched, err := s.events.IsMatched(ctx, stored.ID); err != nil {
		return err
	} else if matched {
		return nil
	}

	subID, ok := byAmount[stored.AmountMinor]
	if !ok {
		return nil
	}

	_, err = s.events.MatchToSubscription(ctx, stored.ID, subID)
	switch {
	case err == nil:
		s.logger.Info("payment matched, subscription activated",
			zap.String("subscription_id", subID.String()),
			zap.String("event_id", stored.ID.String()),
			zap.Int64("amount_minor", stored.AmountMinor))
		delete(byAmount, stored.AmountMinor)
		return nil
	case xerrors.Is(err, xerrors.ErrAlreadyMatched),
		xerrors.Is(err, xerrors.ErrNotPending),
		xerrors.Is(err, xerrors.ErrAmountMismatch):
		// A previous cycle or a concurrent worker got there first.
		s.logger.Debug("payment match skipped",
			zap.String("event_id", stored.ID.String()),
			zap.Error(err))
		return nil
	case xerrors.Is(err, xerrors.ErrConflict):
		// Serialization failure; the next cycle retries from fresh state.
		s.logger.Warn("payment match conflicted, will retry",
			zap.String("event_id", stored.ID.String()))
		return nil
	default:
		return err
	}
}

// markSeen records a successfully processed key, evicting oldest entries
// past the cache limit.
func (s *VerifierService) markSeen(key string) {
	if s.seen[key] {
		return
	}
	s.seen[key] = true
	s.seenOrder = append(s.seenOrder, key)
	if len(s.seenOrder) > s.cfg.SeenCacheLimit {
		evict := s.seenOrder[0]
		s.seenOrder = s.seenOrder[1:]
		delete(s.seen, evict)
	}
}
