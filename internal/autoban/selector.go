package autoban

import (
	"slices"

	"github.com/robalyx/autoban/internal/database/types"
	"github.com/robalyx/autoban/internal/database/types/enum"
)

// EventKind identifies the platform event that triggered an evaluation.
type EventKind string

const (
	EventMemberJoin   EventKind = "join"
	EventRoleAcquired EventKind = "role"
	EventVoiceJoin    EventKind = "voice"
	EventMessage      EventKind = "message"
)

// eventRuleTypes lists the rule types each event kind evaluates.
// Join-timing rules are not evaluated on join itself, where elapsed time is always near zero.
var eventRuleTypes = map[EventKind][]enum.RuleType{ //nolint:gochecknoglobals // -
	EventMemberJoin:   {enum.RuleTypeUsernameMatch, enum.RuleTypeAccountAge, enum.RuleTypeNoAvatar},
	EventRoleAcquired: {enum.RuleTypeRoleAcquired},
	EventVoiceJoin:    {enum.RuleTypeVCJoin, enum.RuleTypeVCWithoutIntro},
	EventMessage:      {enum.RuleTypeMessagePost, enum.RuleTypeMsgWithoutIntro},
}

// ruleTypesFor returns the rule types evaluated for an event kind.
func ruleTypesFor(kind EventKind) []enum.RuleType {
	return eventRuleTypes[kind]
}

// Match is the rule selected for an event and the reason it matched.
type Match struct {
	Rule   *types.AutoBanRule
	Reason string
}

// evaluateFunc has the signature of Evaluate.
type evaluateFunc func(rule *types.AutoBanRule, member *Member, ectx EvalContext) (bool, string)

// SelectFirstMatch evaluates the rules relevant to kind in the given order and
// returns the first that matches. Disabled rules are skipped without evaluation.
func SelectFirstMatch(rules []*types.AutoBanRule, kind EventKind, member *Member, ectx EvalContext) *Match {
	return selectFirstMatch(rules, kind, member, ectx, Evaluate)
}

func selectFirstMatch(
	rules []*types.AutoBanRule, kind EventKind, member *Member, ectx EvalContext, evaluate evaluateFunc,
) *Match {
	allowed := ruleTypesFor(kind)

	for _, rule := range rules {
		if !rule.IsEnabled || !slices.Contains(allowed, rule.RuleType) {
			continue
		}

		if matched, reason := evaluate(rule, member, ectx); matched {
			return &Match{Rule: rule, Reason: reason}
		}
	}

	return nil
}

// introChannels returns the required channels of the intro-gated rules.
func introChannels(rules []*types.AutoBanRule) []string {
	var channels []string

	for _, rule := range rules {
		if !rule.IsEnabled || !rule.RuleType.IsIntroGated() || rule.RequiredChannelID == nil {
			continue
		}

		if !slices.Contains(channels, *rule.RequiredChannelID) {
			channels = append(channels, *rule.RequiredChannelID)
		}
	}

	return channels
}
