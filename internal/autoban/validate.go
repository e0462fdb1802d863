package autoban

import (
	"fmt"
	"strings"

	"github.com/robalyx/autoban/internal/database/types"
	"github.com/robalyx/autoban/internal/database/types/enum"
)

// MaxPatternLength is the longest username pattern a rule may store.
const MaxPatternLength = 100

// ValidateRule checks that rule carries the parameters its type needs and
// clears the ones its type ignores. Errors wrap types.ErrInvalidRule.
func ValidateRule(rule *types.AutoBanRule) error {
	if rule.GuildID == "" {
		return fmt.Errorf("%w: guild is required", types.ErrInvalidRule)
	}

	if !rule.RuleType.IsValid() {
		return fmt.Errorf("%w: unknown rule type %q", types.ErrInvalidRule, rule.RuleType)
	}

	if rule.Action == "" {
		rule.Action = enum.RuleActionBan
	}

	if !rule.Action.IsValid() {
		return fmt.Errorf("%w: unknown action %q", types.ErrInvalidRule, rule.Action)
	}

	switch {
	case rule.RuleType == enum.RuleTypeUsernameMatch:
		if rule.Pattern == nil || strings.TrimSpace(*rule.Pattern) == "" {
			return fmt.Errorf("%w: username_match requires a pattern", types.ErrInvalidRule)
		}

		pattern := strings.TrimSpace(*rule.Pattern)
		if len([]rune(pattern)) > MaxPatternLength {
			return fmt.Errorf("%w: pattern is longer than %d characters", types.ErrInvalidRule, MaxPatternLength)
		}
		rule.Pattern = &pattern

	case rule.RuleType == enum.RuleTypeAccountAge:
		if rule.ThresholdHours == nil || *rule.ThresholdHours < 1 || *rule.ThresholdHours > MaxThresholdHours {
			return fmt.Errorf("%w: account_age requires threshold_hours between 1 and %d",
				types.ErrInvalidRule, MaxThresholdHours)
		}

	case rule.RuleType.IsTiming():
		if rule.ThresholdSeconds == nil || *rule.ThresholdSeconds < 1 || *rule.ThresholdSeconds > MaxThresholdSeconds {
			return fmt.Errorf("%w: %s requires threshold_seconds between 1 and %d",
				types.ErrInvalidRule, rule.RuleType, MaxThresholdSeconds)
		}

	case rule.RuleType.IsIntroGated():
		if rule.RequiredChannelID == nil || *rule.RequiredChannelID == "" {
			return fmt.Errorf("%w: %s requires required_channel_id", types.ErrInvalidRule, rule.RuleType)
		}
	}

	normalizeRule(rule)

	return nil
}

// normalizeRule clears the parameters irrelevant to the rule type.
func normalizeRule(rule *types.AutoBanRule) {
	if rule.RuleType != enum.RuleTypeUsernameMatch {
		rule.Pattern = nil
		rule.UseWildcard = false
	}

	if rule.RuleType != enum.RuleTypeAccountAge {
		rule.ThresholdHours = nil
	}

	if !rule.RuleType.IsTiming() {
		rule.ThresholdSeconds = nil
	}

	if !rule.RuleType.IsIntroGated() {
		rule.RequiredChannelID = nil
	}
}

// DescribeRule returns a short human-readable summary of the rule parameters.
func DescribeRule(rule *types.AutoBanRule) string {
	switch {
	case rule.RuleType == enum.RuleTypeUsernameMatch && rule.Pattern != nil:
		mode := "exact"
		if rule.UseWildcard {
			mode = "wildcard"
		}
		return fmt.Sprintf("pattern `%s` (%s)", *rule.Pattern, mode)
	case rule.RuleType == enum.RuleTypeAccountAge && rule.ThresholdHours != nil:
		return fmt.Sprintf("younger than %dh", *rule.ThresholdHours)
	case rule.RuleType == enum.RuleTypeNoAvatar:
		return "no avatar"
	case rule.RuleType.IsTiming() && rule.ThresholdSeconds != nil:
		return fmt.Sprintf("within %ds of joining", *rule.ThresholdSeconds)
	case rule.RuleType.IsIntroGated() && rule.RequiredChannelID != nil:
		return fmt.Sprintf("intro required in <#%s>", *rule.RequiredChannelID)
	default:
		return "-"
	}
}
