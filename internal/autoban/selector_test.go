package autoban

import (
	"testing"
	"time"

	"github.com/robalyx/autoban/internal/database/types"
	"github.com/robalyx/autoban/internal/database/types/enum"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string {
	return &s
}

func TestSelectNeverEvaluatesDisabledRules(t *testing.T) {
	t.Parallel()

	rules := []*types.AutoBanRule{
		{ID: 1, RuleType: enum.RuleTypeNoAvatar, IsEnabled: false},
		{ID: 2, RuleType: enum.RuleTypeUsernameMatch, IsEnabled: true, Pattern: strPtr("x")},
		{ID: 3, RuleType: enum.RuleTypeAccountAge, IsEnabled: false},
		{ID: 4, RuleType: enum.RuleTypeNoAvatar, IsEnabled: true},
	}

	var seen []int64
	spy := func(rule *types.AutoBanRule, member *Member, ectx EvalContext) (bool, string) {
		assert.True(t, rule.IsEnabled, "disabled rule %d reached the evaluator", rule.ID)
		seen = append(seen, rule.ID)
		return Evaluate(rule, member, ectx)
	}

	match := selectFirstMatch(rules, EventMemberJoin, &Member{Username: "y"}, EvalContext{Now: time.Now()}, spy)
	require.NotNil(t, match)
	assert.Equal(t, int64(4), match.Rule.ID)
	assert.Equal(t, []int64{2, 4}, seen)
}

func TestSelectFirstMatchWins(t *testing.T) {
	t.Parallel()

	rules := []*types.AutoBanRule{
		{ID: 7, RuleType: enum.RuleTypeUsernameMatch, IsEnabled: true, Pattern: strPtr("bot"), UseWildcard: true},
		{ID: 8, RuleType: enum.RuleTypeNoAvatar, IsEnabled: true, Action: enum.RuleActionKick},
	}

	calls := 0
	spy := func(rule *types.AutoBanRule, member *Member, ectx EvalContext) (bool, string) {
		calls++
		return Evaluate(rule, member, ectx)
	}

	match := selectFirstMatch(rules, EventMemberJoin, &Member{Username: "spambot"}, EvalContext{Now: time.Now()}, spy)
	require.NotNil(t, match)
	assert.Equal(t, int64(7), match.Rule.ID)
	assert.Contains(t, match.Reason, "wildcard match")
	assert.Equal(t, 1, calls)
}

func TestSelectFiltersByEventKind(t *testing.T) {
	t.Parallel()

	joined := time.Now().Add(-time.Second)
	sixty := 60
	rules := []*types.AutoBanRule{
		{ID: 1, RuleType: enum.RuleTypeNoAvatar, IsEnabled: true},
		{ID: 2, RuleType: enum.RuleTypeVCJoin, IsEnabled: true, ThresholdSeconds: new(int)},
		{ID: 3, RuleType: enum.RuleTypeRoleAcquired, IsEnabled: true, ThresholdSeconds: &sixty},
	}

	tests := []struct {
		kind EventKind
		want int64
	}{
		{kind: EventMemberJoin, want: 1},
		{kind: EventRoleAcquired, want: 3},
		{kind: EventVoiceJoin},
		{kind: EventMessage},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			t.Parallel()

			match := SelectFirstMatch(rules, tt.kind, &Member{JoinedAt: &joined}, EvalContext{Now: time.Now()})
			if tt.want == 0 {
				assert.Nil(t, match)
				return
			}

			require.NotNil(t, match)
			assert.Equal(t, tt.want, match.Rule.ID)
		})
	}
}

func TestRuleTypesForJoinExcludesTiming(t *testing.T) {
	t.Parallel()

	for _, ruleType := range ruleTypesFor(EventMemberJoin) {
		assert.False(t, ruleType.IsTiming())
		assert.False(t, ruleType.IsIntroGated())
	}

	assert.Equal(t, []enum.RuleType{enum.RuleTypeRoleAcquired}, ruleTypesFor(EventRoleAcquired))
}

func TestIntroChannels(t *testing.T) {
	t.Parallel()

	rules := []*types.AutoBanRule{
		{RuleType: enum.RuleTypeVCWithoutIntro, IsEnabled: true, RequiredChannelID: strPtr("10")},
		{RuleType: enum.RuleTypeMsgWithoutIntro, IsEnabled: true, RequiredChannelID: strPtr("10")},
		{RuleType: enum.RuleTypeMsgWithoutIntro, IsEnabled: true, RequiredChannelID: strPtr("20")},
		{RuleType: enum.RuleTypeMsgWithoutIntro, IsEnabled: false, RequiredChannelID: strPtr("30")},
		{RuleType: enum.RuleTypeMessagePost, IsEnabled: true, RequiredChannelID: strPtr("40")},
	}

	assert.Equal(t, []string{"10", "20"}, introChannels(rules))
}
