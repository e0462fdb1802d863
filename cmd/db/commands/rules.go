package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/robalyx/autoban/internal/autoban"
	"github.com/robalyx/autoban/internal/database/types"
	"github.com/robalyx/autoban/internal/database/types/enum"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

// RuleCommands returns the autoban rule administration commands.
func RuleCommands(deps *CLIDependencies) []*cli.Command {
	guildFlag := &cli.StringFlag{
		Name:     "guild",
		Aliases:  []string{"g"},
		Usage:    "Guild ID",
		Required: true,
	}

	return []*cli.Command{
		{
			Name:  "rules",
			Usage: "Manage autoban rules",
			Commands: []*cli.Command{
				{
					Name:   "list",
					Usage:  "List the rules of a guild in evaluation order",
					Flags:  []cli.Flag{guildFlag},
					Action: handleRulesList(deps),
				},
				{
					Name:  "add",
					Usage: "Add a rule to a guild",
					Description: `Add an autoban rule. Only the parameters of the chosen type are kept.

Examples:
  db rules add -g 123 --type username_match --pattern "spam" --wildcard
  db rules add -g 123 --type account_age --hours 24 --action kick
  db rules add -g 123 --type msg_without_intro --channel 456`,
					Flags: []cli.Flag{
						guildFlag,
						&cli.StringFlag{Name: "type", Usage: "Rule type", Required: true},
						&cli.StringFlag{Name: "action", Usage: "ban or kick", Value: enum.RuleActionBan.String()},
						&cli.StringFlag{Name: "pattern", Usage: "Username pattern"},
						&cli.BoolFlag{Name: "wildcard", Usage: "Match when the pattern appears anywhere in the username (characters are literal)"},
						&cli.IntFlag{Name: "hours", Usage: "Account age threshold in hours"},
						&cli.IntFlag{Name: "seconds", Usage: "Timing threshold in seconds"},
						&cli.StringFlag{Name: "channel", Usage: "Introduction channel ID"},
					},
					Action: handleRulesAdd(deps),
				},
				{
					Name:      "remove",
					Usage:     "Remove a rule",
					ArgsUsage: "RULE_ID",
					Flags:     []cli.Flag{guildFlag},
					Action:    handleRulesRemove(deps),
				},
				{
					Name:      "toggle",
					Usage:     "Enable or disable a rule",
					ArgsUsage: "RULE_ID",
					Flags:     []cli.Flag{guildFlag},
					Action:    handleRulesToggle(deps),
				},
			},
		},
	}
}

func handleRulesList(deps *CLIDependencies) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		rules, err := deps.Admin.ListRules(ctx, c.String("guild"))
		if err != nil {
			return err
		}

		if len(rules) == 0 {
			fmt.Println("No autoban rules configured.")
			return nil
		}

		for _, rule := range rules {
			state := "enabled"
			if !rule.IsEnabled {
				state = "disabled"
			}

			fmt.Printf("#%-5d %-18s %-5s %-9s %s\n",
				rule.ID, rule.RuleType, rule.Action, state, autoban.DescribeRule(rule))
		}

		return nil
	}
}

func handleRulesAdd(deps *CLIDependencies) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		rule := &types.AutoBanRule{
			GuildID:     c.String("guild"),
			RuleType:    enum.RuleType(c.String("type")),
			Action:      enum.RuleAction(c.String("action")),
			UseWildcard: c.Bool("wildcard"),
		}

		if c.IsSet("pattern") {
			pattern := c.String("pattern")
			rule.Pattern = &pattern
		}
		if c.IsSet("hours") {
			hours := int(c.Int("hours"))
			rule.ThresholdHours = &hours
		}
		if c.IsSet("seconds") {
			seconds := int(c.Int("seconds"))
			rule.ThresholdSeconds = &seconds
		}
		if c.IsSet("channel") {
			channel := c.String("channel")
			rule.RequiredChannelID = &channel
		}

		if err := deps.Admin.AddRule(ctx, rule); err != nil {
			return err
		}

		deps.Logger.Info("Added rule",
			zap.Int64("ruleID", rule.ID),
			zap.String("description", autoban.DescribeRule(rule)))

		return nil
	}
}

func handleRulesRemove(deps *CLIDependencies) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		ruleID, err := ruleIDArg(c)
		if err != nil {
			return err
		}

		if err := deps.Admin.RemoveRule(ctx, c.String("guild"), ruleID); err != nil {
			return err
		}

		deps.Logger.Info("Removed rule", zap.Int64("ruleID", ruleID))

		return nil
	}
}

func handleRulesToggle(deps *CLIDependencies) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		ruleID, err := ruleIDArg(c)
		if err != nil {
			return err
		}

		rule, err := deps.Admin.ToggleRule(ctx, c.String("guild"), ruleID)
		if err != nil {
			return err
		}

		deps.Logger.Info("Toggled rule",
			zap.Int64("ruleID", rule.ID),
			zap.Bool("enabled", rule.IsEnabled))

		return nil
	}
}

func ruleIDArg(c *cli.Command) (int64, error) {
	if c.Args().Len() != 1 {
		return 0, ErrRuleIDRequired
	}

	ruleID, err := strconv.ParseInt(c.Args().First(), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid rule id %q: %w", c.Args().First(), err)
	}

	return ruleID, nil
}
