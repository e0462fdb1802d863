package autoban_test

import (
	"context"
	"errors"
	"sync"

	"github.com/disgoorg/disgo/discord"
	"github.com/robalyx/autoban/internal/autoban"
	"github.com/robalyx/autoban/internal/database/types"
)

var (
	errBroken  = errors.New("broken")
	errAborted = errors.New("current transaction is aborted")
)

func ptr[T any](v T) *T {
	return &v
}

type platformCall struct {
	Op      string
	GuildID string
	UserID  string
	Reason  string
}

// fakePlatform records calls and returns the configured errors.
type fakePlatform struct {
	mu sync.Mutex

	calls  []platformCall
	embeds map[string][]discord.Embed

	banErr     error
	kickErr    error
	sendErr    error
	banReason  *string
	fetchErr   error
	fetchCalls int
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{embeds: make(map[string][]discord.Embed)}
}

func (p *fakePlatform) Ban(_ context.Context, guildID, userID, reason string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls = append(p.calls, platformCall{Op: "ban", GuildID: guildID, UserID: userID, Reason: reason})
	return p.banErr
}

func (p *fakePlatform) Kick(_ context.Context, guildID, userID, reason string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls = append(p.calls, platformCall{Op: "kick", GuildID: guildID, UserID: userID, Reason: reason})
	return p.kickErr
}

func (p *fakePlatform) FetchBanReason(context.Context, string, string) (*string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.fetchCalls++
	return p.banReason, p.fetchErr
}

func (p *fakePlatform) SendEmbed(_ context.Context, channelID string, embed discord.Embed) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.sendErr != nil {
		return p.sendErr
	}

	p.embeds[channelID] = append(p.embeds[channelID], embed)
	return nil
}

func (p *fakePlatform) Calls() []platformCall {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]platformCall(nil), p.calls...)
}

// memStore is an in-memory Store with switchable failures.
type memStore struct {
	mu sync.Mutex

	rules    []*types.AutoBanRule
	logs     []*types.AutoBanLog
	banLogs  []*types.BanLog
	configs  map[string]*types.AutoBanConfig
	intros   map[[3]string]bool
	claims   map[string]bool
	rulesErr error
	logErr   error
	cfgErr   error
	claimErr error
	introErr error
}

func newMemStore(rules ...*types.AutoBanRule) *memStore {
	return &memStore{
		rules:   rules,
		configs: make(map[string]*types.AutoBanConfig),
		intros:  make(map[[3]string]bool),
		claims:  make(map[string]bool),
	}
}

func (s *memStore) WithSession(ctx context.Context, fn func(context.Context, autoban.Store) error) error {
	return fn(ctx, s)
}

func (s *memStore) EnabledRules(_ context.Context, guildID string) ([]*types.AutoBanRule, error) {
	if s.rulesErr != nil {
		return nil, s.rulesErr
	}

	var rules []*types.AutoBanRule
	for _, rule := range s.rules {
		if rule.GuildID == guildID && rule.IsEnabled {
			rules = append(rules, rule)
		}
	}

	return rules, nil
}

func (s *memStore) RecordIntroPost(_ context.Context, guildID, userID, channelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.intros[[3]string{guildID, userID, channelID}] = true
	return nil
}

func (s *memStore) HasIntroPost(_ context.Context, guildID, userID, channelID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.introErr != nil {
		return false, s.introErr
	}

	return s.intros[[3]string{guildID, userID, channelID}], nil
}

func (s *memStore) CreateAutoBanLog(_ context.Context, log *types.AutoBanLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.logErr != nil {
		return s.logErr
	}

	s.logs = append(s.logs, log)
	return nil
}

func (s *memStore) AutoBanConfig(_ context.Context, guildID string) (*types.AutoBanConfig, error) {
	if s.cfgErr != nil {
		return nil, s.cfgErr
	}
	return s.configs[guildID], nil
}

func (s *memStore) CreateBanLog(_ context.Context, log *types.BanLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.banLogs = append(s.banLogs, log)
	return nil
}

func (s *memStore) Claim(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.claimErr != nil {
		return false, s.claimErr
	}

	if s.claims[key] {
		return false, nil
	}

	s.claims[key] = true
	return true, nil
}

// abortingSessions mimics a Postgres transaction: once a statement fails,
// every later write in the same session fails too.
type abortingSessions struct {
	store *memStore
}

func (s abortingSessions) WithSession(ctx context.Context, fn func(context.Context, autoban.Store) error) error {
	return fn(ctx, &abortingStore{memStore: s.store})
}

type abortingStore struct {
	*memStore

	aborted bool
}

func (s *abortingStore) Claim(ctx context.Context, key string) (bool, error) {
	won, err := s.memStore.Claim(ctx, key)
	if err != nil {
		s.aborted = true
	}

	return won, err
}

func (s *abortingStore) CreateAutoBanLog(ctx context.Context, log *types.AutoBanLog) error {
	if s.aborted {
		return errAborted
	}

	return s.memStore.CreateAutoBanLog(ctx, log)
}

func (s *abortingStore) CreateBanLog(ctx context.Context, log *types.BanLog) error {
	if s.aborted {
		return errAborted
	}

	return s.memStore.CreateBanLog(ctx, log)
}
