package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"shopledger/backend/internal/cache"
	"shopledger/backend/internal/domain"
	"shopledger/backend/internal/finance"
	"shopledger/backend/internal/ledger"
	"shopledger/backend/internal/lock"
	"shopledger/backend/internal/sales"
	"shopledger/backend/internal/store"
)

var ErrForbidden = errors.New("admin role required")

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Options struct {
	Cache             cache.Cache
	CacheTTL          time.Duration
	Locker            lock.Locker
	LockTTL           time.Duration
	MaxCommitAttempts int
	RetryBackoff      time.Duration
	Logger            logrus.FieldLogger
	Now               func() time.Time
}

// Service is the in-process entry point of the ledger. Every write runs as a
// single unit of work against the store and is retried as a whole when it
// loses a race with a concurrent writer.
type Service struct {
	repo           store.Store
	defaultOwnerID string

	audit      *ledger.AuditTrail
	inventory  *ledger.Inventory
	recorder   *sales.Recorder
	aggregator *finance.Aggregator

	cache       cache.Cache
	cacheTTL    time.Duration
	locker      lock.Locker
	lockTTL     time.Duration
	maxAttempts int
	backoff     time.Duration
	log         logrus.FieldLogger
	now         func() time.Time
}

func New(repo store.Store, defaultOwnerID string, opts Options) *Service {
	if defaultOwnerID == "" {
		defaultOwnerID = "main-owner"
	}
	if opts.Cache == nil {
		opts.Cache = cache.Noop{}
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 30 * time.Second
	}
	if opts.Locker == nil {
		opts.Locker = lock.Noop{}
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 10 * time.Second
	}
	if opts.MaxCommitAttempts < 1 {
		opts.MaxCommitAttempts = 5
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 20 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}

	audit := ledger.NewAuditTrail(opts.Now)
	inventory := ledger.NewInventory(audit, opts.Now)
	recorder := sales.NewRecorder(sales.NewAllocator(), inventory, sales.NewPropagator(opts.Now), opts.Now)

	return &Service{
		repo:           repo,
		defaultOwnerID: defaultOwnerID,
		audit:          audit,
		inventory:      inventory,
		recorder:       recorder,
		aggregator:     finance.NewAggregator(),
		cache:          opts.Cache,
		cacheTTL:       opts.CacheTTL,
		locker:         opts.Locker,
		lockTTL:        opts.LockTTL,
		maxAttempts:    opts.MaxCommitAttempts,
		backoff:        opts.RetryBackoff,
		log:            opts.Logger.WithField("module", "service"),
		now:            opts.Now,
	}
}

// ownerID is the ledger the caller acts on: the authenticated user, or the
// configured default owner for in-process callers without an actor.
func (s *Service) ownerID(ctx context.Context) string {
	if actor, ok := ActorFromContext(ctx); ok && actor.UserID != "" {
		return actor.UserID
	}
	return s.defaultOwnerID
}

func requireAdmin(ctx context.Context) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return ErrForbidden
	}
	return nil
}

// commit runs fn as one unit of work under the owner's ledger lock. Conflicts
// retry the whole unit with a linear backoff; after the last attempt they are
// reported as ErrAllocationConflict.
func (s *Service) commit(ctx context.Context, op string, ownerID string, fn func(ctx context.Context, tx store.Tx) error) error {
	for attempt := 1; ; attempt++ {
		err := s.commitOnce(ctx, ownerID, fn)
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}

		entry := s.log.WithFields(logrus.Fields{
			"op":       op,
			"owner_id": ownerID,
			"attempt":  attempt,
		})
		if attempt >= s.maxAttempts {
			entry.WithError(err).Warn("unit of work kept conflicting; giving up")
			return fmt.Errorf("%w: %s after %d attempts", sales.ErrAllocationConflict, op, attempt)
		}
		entry.WithError(err).Debug("unit of work conflicted; retrying")

		timer := time.NewTimer(time.Duration(attempt) * s.backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (s *Service) commitOnce(ctx context.Context, ownerID string, fn func(ctx context.Context, tx store.Tx) error) error {
	release, err := s.locker.Obtain(ctx, lock.LedgerKey(ownerID), s.lockTTL)
	if err != nil {
		return err
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.log.WithField("owner_id", ownerID).WithError(err).Warn("failed to release ledger lock")
		}
	}()

	return s.repo.WithTransaction(ctx, fn)
}

func isRetryable(err error) bool {
	return errors.Is(err, store.ErrConflict) || errors.Is(err, lock.ErrNotObtained)
}

func (s *Service) view(ctx context.Context, fn func(ctx context.Context, r store.Reader) error) error {
	return s.repo.View(ctx, fn)
}

func buyerKey(ownerID string, buyerID string) string {
	return fmt.Sprintf("financials:%s:buyer:%s", ownerID, buyerID)
}

func itemKey(ownerID string, itemID string) string {
	return fmt.Sprintf("financials:%s:item:%s", ownerID, itemID)
}

// invalidate drops cached figures after a committed write. A failure only
// costs freshness until the TTL runs out, so it is logged and swallowed.
func (s *Service) invalidate(ctx context.Context, ownerID string, buyerIDs []string, itemIDs []string) {
	keys := make([]string, 0, len(buyerIDs)+len(itemIDs))
	for _, id := range buyerIDs {
		if id != "" {
			keys = append(keys, buyerKey(ownerID, id))
		}
	}
	for _, id := range itemIDs {
		if id != "" {
			keys = append(keys, itemKey(ownerID, id))
		}
	}
	if len(keys) == 0 {
		return
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		s.log.WithFields(logrus.Fields{"owner_id": ownerID, "keys": keys}).WithError(err).Warn("failed to invalidate cached financials")
	}
}

// cachedRead serves key from the cache or loads it from committed data.
func cachedRead[T any](ctx context.Context, s *Service, key string, load func(ctx context.Context, r store.Reader) (T, error)) (T, error) {
	var out T
	hit, err := s.cache.Get(ctx, key, &out)
	if err != nil {
		s.log.WithField("key", key).WithError(err).Warn("cache read failed")
	}
	if hit && err == nil {
		return out, nil
	}

	err = s.view(ctx, func(ctx context.Context, r store.Reader) error {
		var loadErr error
		out, loadErr = load(ctx, r)
		return loadErr
	})
	if err != nil {
		var zero T
		return zero, err
	}

	if err := s.cache.Set(ctx, key, out, s.cacheTTL); err != nil {
		s.log.WithField("key", key).WithError(err).Warn("cache write failed")
	}
	return out, nil
}
