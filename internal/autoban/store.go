package autoban

import (
	"context"

	"github.com/robalyx/autoban/internal/database"
	"github.com/robalyx/autoban/internal/database/types"
)

// Store is the persistence the engine needs within one unit of work.
type Store interface {
	// EnabledRules returns the guild's enabled rules in ascending id order.
	EnabledRules(ctx context.Context, guildID string) ([]*types.AutoBanRule, error)
	RecordIntroPost(ctx context.Context, guildID, userID, channelID string) error
	HasIntroPost(ctx context.Context, guildID, userID, channelID string) (bool, error)
	CreateAutoBanLog(ctx context.Context, log *types.AutoBanLog) error
	// AutoBanConfig returns nil when the guild has no config.
	AutoBanConfig(ctx context.Context, guildID string) (*types.AutoBanConfig, error)
	CreateBanLog(ctx context.Context, log *types.BanLog) error
	// Claim inserts a ledger key and reports whether this caller won it.
	Claim(ctx context.Context, key string) (bool, error)
}

// Sessions opens short-lived units of work.
// The session is released on every return path of fn.
type Sessions interface {
	WithSession(ctx context.Context, fn func(context.Context, Store) error) error
}

// RuleCache caches enabled rules per guild.
type RuleCache interface {
	// EnabledRules returns cached rules or calls load on a miss.
	EnabledRules(
		ctx context.Context, guildID string, load func(context.Context) ([]*types.AutoBanRule, error),
	) ([]*types.AutoBanRule, error)
	// Invalidate drops the cached rules of a guild.
	Invalidate(ctx context.Context, guildID string)
}

// NewSessions returns database-backed sessions, each running in one transaction.
// cache may be nil.
func NewSessions(db database.Client, cache RuleCache) Sessions {
	return &dbSessions{db: db, cache: cache}
}

type dbSessions struct {
	db    database.Client
	cache RuleCache
}

func (s *dbSessions) WithSession(ctx context.Context, fn func(context.Context, Store) error) error {
	return s.db.RunInTx(ctx, func(ctx context.Context, repo *database.Repository) error {
		return fn(ctx, &repoStore{repo: repo, cache: s.cache})
	})
}

// repoStore adapts a transaction-bound repository to Store.
type repoStore struct {
	repo  *database.Repository
	cache RuleCache
}

func (s *repoStore) EnabledRules(ctx context.Context, guildID string) ([]*types.AutoBanRule, error) {
	load := func(ctx context.Context) ([]*types.AutoBanRule, error) {
		return s.repo.Rule().GetEnabledByGuild(ctx, guildID)
	}

	if s.cache == nil {
		return load(ctx)
	}

	return s.cache.EnabledRules(ctx, guildID, load)
}

func (s *repoStore) RecordIntroPost(ctx context.Context, guildID, userID, channelID string) error {
	return s.repo.IntroPost().Record(ctx, guildID, userID, channelID)
}

func (s *repoStore) HasIntroPost(ctx context.Context, guildID, userID, channelID string) (bool, error) {
	return s.repo.IntroPost().HasPost(ctx, guildID, userID, channelID)
}

func (s *repoStore) CreateAutoBanLog(ctx context.Context, log *types.AutoBanLog) error {
	return s.repo.Audit().CreateAutoBanLog(ctx, log)
}

func (s *repoStore) AutoBanConfig(ctx context.Context, guildID string) (*types.AutoBanConfig, error) {
	return s.repo.Config().Get(ctx, guildID)
}

func (s *repoStore) CreateBanLog(ctx context.Context, log *types.BanLog) error {
	return s.repo.Audit().CreateBanLog(ctx, log)
}

func (s *repoStore) Claim(ctx context.Context, key string) (bool, error) {
	return s.repo.Event().Claim(ctx, key)
}
