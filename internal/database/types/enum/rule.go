package enum

import "slices"

// RuleType identifies which check an autoban rule performs.
type RuleType string

const (
	// RuleTypeUsernameMatch matches the username against a pattern.
	RuleTypeUsernameMatch RuleType = "username_match"
	// RuleTypeAccountAge matches accounts younger than a threshold in hours.
	RuleTypeAccountAge RuleType = "account_age"
	// RuleTypeNoAvatar matches accounts without an avatar.
	RuleTypeNoAvatar RuleType = "no_avatar"
	// RuleTypeRoleAcquired matches members gaining a role soon after joining.
	RuleTypeRoleAcquired RuleType = "role_acquired"
	// RuleTypeVCJoin matches members joining voice soon after joining.
	RuleTypeVCJoin RuleType = "vc_join"
	// RuleTypeMessagePost matches members posting soon after joining.
	RuleTypeMessagePost RuleType = "message_post"
	// RuleTypeVCWithoutIntro matches members joining voice before posting an intro.
	RuleTypeVCWithoutIntro RuleType = "vc_without_intro"
	// RuleTypeMsgWithoutIntro matches members posting before posting an intro.
	RuleTypeMsgWithoutIntro RuleType = "msg_without_intro"
)

// RuleTypes lists every known rule type in display order.
var RuleTypes = []RuleType{ //nolint:gochecknoglobals // -
	RuleTypeUsernameMatch,
	RuleTypeAccountAge,
	RuleTypeNoAvatar,
	RuleTypeRoleAcquired,
	RuleTypeVCJoin,
	RuleTypeMessagePost,
	RuleTypeVCWithoutIntro,
	RuleTypeMsgWithoutIntro,
}

// IsValid reports whether the rule type is known.
func (t RuleType) IsValid() bool {
	return slices.Contains(RuleTypes, t)
}

// IsTiming reports whether the rule compares time since the guild join.
func (t RuleType) IsTiming() bool {
	return t == RuleTypeRoleAcquired || t == RuleTypeVCJoin || t == RuleTypeMessagePost
}

// IsIntroGated reports whether the rule depends on an intro post.
func (t RuleType) IsIntroGated() bool {
	return t == RuleTypeVCWithoutIntro || t == RuleTypeMsgWithoutIntro
}

func (t RuleType) String() string {
	return string(t)
}

// RuleAction is the moderation action an autoban rule performs.
type RuleAction string

const (
	RuleActionBan  RuleAction = "ban"
	RuleActionKick RuleAction = "kick"
)

// IsValid reports whether the action is known.
func (a RuleAction) IsValid() bool {
	return a == RuleActionBan || a == RuleActionKick
}

// Taken maps the configured action to the recorded outcome.
func (a RuleAction) Taken() ActionTaken {
	if a == RuleActionKick {
		return ActionTakenKicked
	}
	return ActionTakenBanned
}

func (a RuleAction) String() string {
	return string(a)
}

// ActionTaken is the outcome recorded in the autoban audit log.
type ActionTaken string

const (
	ActionTakenBanned ActionTaken = "banned"
	ActionTakenKicked ActionTaken = "kicked"
)

func (a ActionTaken) String() string {
	return string(a)
}
