package constants

const (
	// Commands.
	AutobanCommandName = "autoban"
	HealthCommandName  = "health"

	// Autoban subcommands.
	AutobanAddSubcommand        = "add"
	AutobanRemoveSubcommand     = "remove"
	AutobanToggleSubcommand     = "toggle"
	AutobanListSubcommand       = "list"
	AutobanLogsSubcommand       = "logs"
	AutobanBansSubcommand       = "bans"
	AutobanLogChannelSubcommand = "log-channel"

	// Health subcommands.
	HealthSetupSubcommand   = "setup"
	HealthDisableSubcommand = "disable"

	// Options.
	OptionRuleType  = "rule_type"
	OptionAction    = "action"
	OptionPattern   = "pattern"
	OptionWildcard  = "use_wildcard"
	OptionHours     = "threshold_hours"
	OptionSeconds   = "threshold_seconds"
	OptionChannel   = "channel"
	OptionRuleID    = "rule_id"
	OptionLimit     = "limit"
	OptionLogsLimit = 25

	// Colors.
	DefaultEmbedColor = 0x312D2B
	AutobanEmbedColor = 0xFF4444
	ErrorEmbedColor   = 0xE74C3C
	SuccessEmbedColor = 0x2ECC71

	// Limits.
	MaxEmbedFields = 25
)
