package autoban_test

import (
	"testing"
	"time"

	"github.com/robalyx/autoban/internal/autoban"
	"github.com/robalyx/autoban/internal/database/dbtest"
	"github.com/robalyx/autoban/internal/database/types"
	"github.com/robalyx/autoban/internal/database/types/enum"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newDispatcher(sessions autoban.Sessions, platform autoban.Platform) *autoban.Dispatcher {
	executor := autoban.NewExecutor(sessions, platform, zap.NewNop())
	return autoban.NewDispatcher(sessions, platform, executor, time.Minute, zap.NewNop())
}

func TestDispatchJoinExactUsername(t *testing.T) {
	t.Parallel()

	db := dbtest.Open(t)
	rule := &types.AutoBanRule{
		GuildID:   "g1",
		RuleType:  enum.RuleTypeUsernameMatch,
		IsEnabled: true,
		Action:    enum.RuleActionBan,
		Pattern:   ptr("spammer"),
	}
	require.NoError(t, db.Model().Rule().Create(t.Context(), rule))

	platform := newFakePlatform()
	dispatcher := newDispatcher(autoban.NewSessions(db, nil), platform)

	member := &autoban.Member{GuildID: "g1", UserID: "u1", Username: "Spammer", HasAvatar: true, CreatedAt: time.Now().Add(-time.Hour * 1000)}
	require.NoError(t, dispatcher.OnMemberJoin(t.Context(), member))

	calls := platform.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "ban", calls[0].Op)

	logs, err := db.Model().Audit().GetAutoBanLogs(t.Context(), "g1", 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, enum.ActionTakenBanned, logs[0].ActionTaken)
	assert.Equal(t, rule.ID, logs[0].RuleID)
	assert.Contains(t, logs[0].Reason, "exact match")
}

func TestDispatchJoinAccountAge(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		age  time.Duration
		want bool
	}{
		{name: "one hour old", age: time.Hour, want: true},
		{name: "a day old", age: 24 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store := newMemStore(&types.AutoBanRule{
				ID: 1, GuildID: "g1", RuleType: enum.RuleTypeAccountAge, IsEnabled: true,
				Action: enum.RuleActionKick, ThresholdHours: ptr(24),
			})
			platform := newFakePlatform()
			dispatcher := newDispatcher(store, platform)

			member := &autoban.Member{GuildID: "g1", UserID: "u1", HasAvatar: true, CreatedAt: time.Now().Add(-tt.age)}
			require.NoError(t, dispatcher.OnMemberJoin(t.Context(), member))

			if tt.want {
				assert.Len(t, platform.Calls(), 1)
				assert.Len(t, store.logs, 1)
			} else {
				assert.Empty(t, platform.Calls())
				assert.Empty(t, store.logs)
			}
		})
	}
}

func TestDispatchOneActionPerEvent(t *testing.T) {
	t.Parallel()

	store := newMemStore(
		&types.AutoBanRule{ID: 1, GuildID: "g1", RuleType: enum.RuleTypeNoAvatar, IsEnabled: true, Action: enum.RuleActionKick},
		&types.AutoBanRule{ID: 2, GuildID: "g1", RuleType: enum.RuleTypeUsernameMatch, IsEnabled: true, Action: enum.RuleActionBan, Pattern: ptr("bad")},
	)
	platform := newFakePlatform()
	dispatcher := newDispatcher(store, platform)

	member := &autoban.Member{GuildID: "g1", UserID: "u1", Username: "bad", CreatedAt: time.Now().Add(-1000 * time.Hour)}
	require.NoError(t, dispatcher.OnMemberJoin(t.Context(), member))

	calls := platform.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "kick", calls[0].Op)
	require.Len(t, store.logs, 1)
	assert.Equal(t, int64(1), store.logs[0].RuleID)
}

func TestDispatchSkipsBots(t *testing.T) {
	t.Parallel()

	store := newMemStore(&types.AutoBanRule{ID: 1, GuildID: "g1", RuleType: enum.RuleTypeNoAvatar, IsEnabled: true, Action: enum.RuleActionBan})
	platform := newFakePlatform()
	dispatcher := newDispatcher(store, platform)

	require.NoError(t, dispatcher.OnMemberJoin(t.Context(), &autoban.Member{GuildID: "g1", UserID: "b1", Bot: true}))
	assert.Empty(t, platform.Calls())
}

func TestDispatchDisabledRulesIgnored(t *testing.T) {
	t.Parallel()

	store := newMemStore(&types.AutoBanRule{ID: 1, GuildID: "g1", RuleType: enum.RuleTypeNoAvatar, IsEnabled: false, Action: enum.RuleActionBan})
	platform := newFakePlatform()
	dispatcher := newDispatcher(store, platform)

	require.NoError(t, dispatcher.OnMemberJoin(t.Context(), &autoban.Member{GuildID: "g1", UserID: "u1"}))
	assert.Empty(t, platform.Calls())
}

func TestDispatchRuleLoadFailure(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.rulesErr = errBroken
	platform := newFakePlatform()
	dispatcher := newDispatcher(store, platform)

	err := dispatcher.OnMemberJoin(t.Context(), &autoban.Member{GuildID: "g1", UserID: "u1"})
	require.ErrorIs(t, err, errBroken)
	assert.Empty(t, platform.Calls())
}

func TestDispatchRoleGainOnly(t *testing.T) {
	t.Parallel()

	joined := time.Now().Add(-10 * time.Second)

	tests := []struct {
		name   string
		before []string
		after  []string
		want   bool
	}{
		{name: "gained role", before: []string{"a"}, after: []string{"a", "b"}, want: true},
		{name: "removed role", before: []string{"a", "b"}, after: []string{"a"}},
		{name: "unchanged", before: []string{"a"}, after: []string{"a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store := newMemStore(&types.AutoBanRule{
				ID: 1, GuildID: "g1", RuleType: enum.RuleTypeRoleAcquired, IsEnabled: true,
				Action: enum.RuleActionBan, ThresholdSeconds: ptr(60),
			})
			platform := newFakePlatform()
			dispatcher := newDispatcher(store, platform)

			before := &autoban.Member{GuildID: "g1", UserID: "u1", JoinedAt: &joined, RoleIDs: tt.before}
			after := &autoban.Member{GuildID: "g1", UserID: "u1", JoinedAt: &joined, RoleIDs: tt.after}

			require.NoError(t, dispatcher.OnMemberUpdate(t.Context(), before, after))
			assert.Equal(t, tt.want, len(platform.Calls()) == 1)
		})
	}
}

func TestDispatchVoiceConnectOnly(t *testing.T) {
	t.Parallel()

	joined := time.Now().Add(-5 * time.Second)

	tests := []struct {
		name   string
		before *string
		after  *string
		want   bool
	}{
		{name: "connect", after: ptr("vc1"), want: true},
		{name: "move", before: ptr("vc1"), after: ptr("vc2")},
		{name: "leave", before: ptr("vc1")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store := newMemStore(&types.AutoBanRule{
				ID: 1, GuildID: "g1", RuleType: enum.RuleTypeVCJoin, IsEnabled: true,
				Action: enum.RuleActionKick, ThresholdSeconds: ptr(30),
			})
			platform := newFakePlatform()
			dispatcher := newDispatcher(store, platform)

			member := &autoban.Member{GuildID: "g1", UserID: "u1", JoinedAt: &joined}
			require.NoError(t, dispatcher.OnVoiceStateUpdate(t.Context(), member, tt.before, tt.after))
			assert.Equal(t, tt.want, len(platform.Calls()) == 1)
		})
	}
}

func TestDispatchMessageRecordsIntro(t *testing.T) {
	t.Parallel()

	ruleCreated := time.Now().Add(-time.Hour)
	joined := time.Now().Add(-time.Minute)

	store := newMemStore(&types.AutoBanRule{
		ID: 1, GuildID: "g1", RuleType: enum.RuleTypeMsgWithoutIntro, IsEnabled: true,
		Action: enum.RuleActionKick, RequiredChannelID: ptr("intro"), CreatedAt: ruleCreated,
	})
	platform := newFakePlatform()
	dispatcher := newDispatcher(store, platform)

	member := &autoban.Member{GuildID: "g1", UserID: "u1", JoinedAt: &joined}

	// Posting the intro records it and never triggers the rule
	require.NoError(t, dispatcher.OnMessage(t.Context(), member, "intro"))
	assert.Empty(t, platform.Calls())
	assert.True(t, store.intros[[3]string{"g1", "u1", "intro"}])

	require.NoError(t, dispatcher.OnMessage(t.Context(), member, "general"))
	assert.Empty(t, platform.Calls())

	other := &autoban.Member{GuildID: "g1", UserID: "u2", JoinedAt: &joined}
	require.NoError(t, dispatcher.OnMessage(t.Context(), other, "general"))

	calls := platform.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "u2", calls[0].UserID)
}

func TestDispatchIntroLookupFailureDoesNotAct(t *testing.T) {
	t.Parallel()

	joined := time.Now().Add(-time.Minute)

	store := newMemStore(&types.AutoBanRule{
		ID: 1, GuildID: "g1", RuleType: enum.RuleTypeVCWithoutIntro, IsEnabled: true,
		Action: enum.RuleActionBan, RequiredChannelID: ptr("intro"), CreatedAt: time.Now().Add(-time.Hour),
	})
	store.introErr = errBroken
	platform := newFakePlatform()
	dispatcher := newDispatcher(store, platform)

	member := &autoban.Member{GuildID: "g1", UserID: "u1", JoinedAt: &joined}
	require.NoError(t, dispatcher.OnVoiceStateUpdate(t.Context(), member, nil, ptr("vc")))
	assert.Empty(t, platform.Calls())
}

func TestDispatchActionClaimedOnce(t *testing.T) {
	t.Parallel()

	db := dbtest.Open(t)
	require.NoError(t, db.Model().Rule().Create(t.Context(), &types.AutoBanRule{
		GuildID: "g1", RuleType: enum.RuleTypeNoAvatar, IsEnabled: true, Action: enum.RuleActionBan,
	}))

	// Two dispatchers share one database like two bot processes
	first := newFakePlatform()
	second := newFakePlatform()
	dispatchers := []*autoban.Dispatcher{
		newDispatcher(autoban.NewSessions(db, nil), first),
		newDispatcher(autoban.NewSessions(db, nil), second),
	}

	member := &autoban.Member{GuildID: "g1", UserID: "u1", CreatedAt: time.Now().Add(-1000 * time.Hour)}
	for _, dispatcher := range dispatchers {
		require.NoError(t, dispatcher.OnMemberJoin(t.Context(), member))
	}

	// Both events land in the same minute bucket unless the test straddles a minute boundary
	total := len(first.Calls()) + len(second.Calls())
	assert.GreaterOrEqual(t, total, 1)
	assert.LessOrEqual(t, total, 2)
	assert.Len(t, first.Calls(), 1)
}

func TestDispatchClaimFailureFailsOpen(t *testing.T) {
	t.Parallel()

	store := newMemStore(&types.AutoBanRule{ID: 1, GuildID: "g1", RuleType: enum.RuleTypeNoAvatar, IsEnabled: true, Action: enum.RuleActionBan})
	store.claimErr = errBroken
	platform := newFakePlatform()
	dispatcher := newDispatcher(store, platform)

	require.NoError(t, dispatcher.OnMemberJoin(t.Context(), &autoban.Member{GuildID: "g1", UserID: "u1"}))
	assert.Len(t, platform.Calls(), 1)
}

func TestOnBanClassifiesReason(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		reason *string
		want   bool
	}{
		{name: "autoban", reason: ptr("[Autoban] Username match"), want: true},
		{name: "moderator", reason: ptr("Rule violation by moderator")},
		{name: "no reason"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			db := dbtest.Open(t)
			platform := newFakePlatform()
			platform.banReason = tt.reason
			dispatcher := newDispatcher(autoban.NewSessions(db, nil), platform)

			require.NoError(t, dispatcher.OnBan(t.Context(), "g1", "u1", "someone"))

			logs, err := db.Model().Audit().GetBanLogs(t.Context(), "g1", 10)
			require.NoError(t, err)
			require.Len(t, logs, 1)
			assert.Equal(t, tt.want, logs[0].IsAutoban)
			assert.Equal(t, tt.reason, logs[0].Reason)
			assert.Equal(t, "someone", logs[0].Username)
		})
	}
}

func TestOnBanFetchFailure(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	platform := newFakePlatform()
	platform.banReason = ptr("[Autoban] No avatar set")
	platform.fetchErr = autoban.ErrPermissionDenied
	dispatcher := newDispatcher(store, platform)

	require.NoError(t, dispatcher.OnBan(t.Context(), "g1", "u1", "someone"))
	require.Len(t, store.banLogs, 1)
	assert.Nil(t, store.banLogs[0].Reason)
	assert.False(t, store.banLogs[0].IsAutoban)
}

func TestClaimFailureDoesNotPoisonWrites(t *testing.T) {
	t.Parallel()

	store := newMemStore(&types.AutoBanRule{ID: 1, GuildID: "g1", RuleType: enum.RuleTypeNoAvatar, IsEnabled: true, Action: enum.RuleActionBan})
	store.claimErr = errBroken
	platform := newFakePlatform()
	platform.banReason = ptr("Rule violation by moderator")
	dispatcher := newDispatcher(abortingSessions{store: store}, platform)

	require.NoError(t, dispatcher.OnBan(t.Context(), "g1", "u1", "someone"))
	require.Len(t, store.banLogs, 1)

	require.NoError(t, dispatcher.OnMemberJoin(t.Context(), &autoban.Member{GuildID: "g1", UserID: "u2"}))
	assert.Len(t, platform.Calls(), 1)
	assert.Len(t, store.logs, 1)
}
