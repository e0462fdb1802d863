package autoban

import (
	"fmt"
	"strings"

	"github.com/robalyx/autoban/internal/database/types"
	"github.com/robalyx/autoban/internal/database/types/enum"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// MaxThresholdHours is the largest account age threshold a rule may use.
const MaxThresholdHours = 336

// MaxThresholdSeconds is the largest join timing threshold a rule may use.
const MaxThresholdSeconds = 3600

// Evaluate decides whether rule matches member and returns the audit reason.
// It has no side effects apart from calling ectx.Intro.
func Evaluate(rule *types.AutoBanRule, member *Member, ectx EvalContext) (bool, string) {
	switch rule.RuleType {
	case enum.RuleTypeUsernameMatch:
		return checkUsername(rule, member)
	case enum.RuleTypeAccountAge:
		return checkAccountAge(rule, member, ectx)
	case enum.RuleTypeNoAvatar:
		return checkNoAvatar(member)
	case enum.RuleTypeRoleAcquired, enum.RuleTypeVCJoin, enum.RuleTypeMessagePost:
		return checkJoinTiming(rule, member, ectx)
	case enum.RuleTypeVCWithoutIntro, enum.RuleTypeMsgWithoutIntro:
		return checkIntro(rule, member, ectx)
	default:
		return false, ""
	}
}

// fold lowercases s. A Caser keeps state, so each call gets its own.
func fold(s string) string {
	return cases.Lower(language.Und).String(s)
}

func checkUsername(rule *types.AutoBanRule, member *Member) (bool, string) {
	if rule.Pattern == nil || *rule.Pattern == "" {
		return false, ""
	}

	pattern := *rule.Pattern
	username := fold(member.Username)
	needle := fold(pattern)

	if rule.UseWildcard {
		if strings.Contains(username, needle) {
			return true, fmt.Sprintf("Username contains '%s' (wildcard match)", pattern)
		}
		return false, ""
	}

	if username == needle {
		return true, fmt.Sprintf("Username matches '%s' (exact match)", pattern)
	}

	return false, ""
}

func checkAccountAge(rule *types.AutoBanRule, member *Member, ectx EvalContext) (bool, string) {
	if rule.ThresholdHours == nil || *rule.ThresholdHours <= 0 || member.CreatedAt.IsZero() {
		return false, ""
	}

	threshold := *rule.ThresholdHours
	elapsed := ectx.Now.Sub(member.CreatedAt).Hours()

	if elapsed < float64(threshold) {
		return true, fmt.Sprintf("Account age (%.1fh) is less than threshold (%dh)", elapsed, threshold)
	}

	return false, ""
}

func checkNoAvatar(member *Member) (bool, string) {
	if member.HasAvatar {
		return false, ""
	}
	return true, "No avatar set"
}

func checkJoinTiming(rule *types.AutoBanRule, member *Member, ectx EvalContext) (bool, string) {
	if rule.ThresholdSeconds == nil || *rule.ThresholdSeconds <= 0 || member.JoinedAt == nil {
		return false, ""
	}

	threshold := *rule.ThresholdSeconds
	elapsed := ectx.Now.Sub(*member.JoinedAt).Seconds()

	if elapsed >= float64(threshold) {
		return false, ""
	}

	var action string

	switch rule.RuleType {
	case enum.RuleTypeRoleAcquired:
		action = "Acquired a role"
	case enum.RuleTypeVCJoin:
		action = "Joined a voice channel"
	default:
		action = "Posted a message"
	}

	return true, fmt.Sprintf("%s %.1fs after joining (threshold %ds)", action, elapsed, threshold)
}

func checkIntro(rule *types.AutoBanRule, member *Member, ectx EvalContext) (bool, string) {
	if rule.RequiredChannelID == nil || *rule.RequiredChannelID == "" || member.JoinedAt == nil {
		return false, ""
	}

	// Members who joined before the rule existed are exempt
	if member.JoinedAt.Before(rule.CreatedAt) {
		return false, ""
	}

	channelID := *rule.RequiredChannelID

	// A message in the intro channel is the intro itself
	if rule.RuleType == enum.RuleTypeMsgWithoutIntro && ectx.ChannelID == channelID {
		return false, ""
	}

	if ectx.Intro == nil || ectx.Intro(channelID) {
		return false, ""
	}

	if rule.RuleType == enum.RuleTypeVCWithoutIntro {
		return true, fmt.Sprintf("Joined a voice channel without posting in <#%s>", channelID)
	}

	return true, fmt.Sprintf("Posted a message without posting in <#%s>", channelID)
}
