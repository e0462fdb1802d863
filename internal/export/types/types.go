package types

import "time"

// AutoBanRecord is one exported autoban action.
type AutoBanRecord struct {
	GuildID   string
	User      string // user id, or its hash when pseudonymized
	RuleID    int64
	Action    string
	Reason    string
	CreatedAt time.Time
}

// BanRecord is one exported observed ban.
type BanRecord struct {
	GuildID   string
	User      string // user id, or its hash when pseudonymized
	Reason    string
	IsAutoban bool
	CreatedAt time.Time
}
