// Package rule holds the recurrence rule commands.
package rule

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/cadence/adapter/cli"
	"github.com/felixgeelhaar/cadence/adapter/cli/event"
	"github.com/felixgeelhaar/cadence/internal/recurrence/application/commands"
	"github.com/felixgeelhaar/cadence/internal/recurrence/infrastructure/ical"
)

// Cmd is the rule command group
var Cmd = &cobra.Command{
	Use:   "rule",
	Short: "Manage recurrence rules",
	Long:  `Attach, replace, show and clear the recurrence rule of an event.`,
}

var (
	frequency string
	interval  int
	weekdays  []string
	monthDay  int
	until     string
	count     int
	file      string
)

var setCmd = &cobra.Command{
	Use:   "set [event-id]",
	Short: "Attach or replace an event's rule",
	Long: `Attach or replace an event's rule. Overrides and pending reminders of
occurrences the new rule no longer generates are dropped.

Examples:
  cadence rule set <id> --freq DAILY --count 10
  cadence rule set <id> --freq WEEKLY --weekday MO,WE,FR --until 2024-06-30T00:00:00Z
  cadence rule set <id> --freq MONTHLY --month-day 31
  cadence rule set <id> --file rule.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.MustApp()
		if err != nil {
			return err
		}
		id, err := cli.ParseID("event id", args[0])
		if err != nil {
			return err
		}
		in, err := ruleInput()
		if err != nil {
			return err
		}
		rule, err := app.SetRuleHandler.Handle(cmd.Context(), commands.SetRecurrenceRuleCommand{EventID: id, Rule: in})
		if err != nil {
			return fmt.Errorf("failed to set rule: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Rule set: %s\n", ical.FormatRRule(rule))
		return nil
	},
}

func ruleInput() (commands.RuleInput, error) {
	if file != "" {
		return event.ReadRuleFile(file)
	}
	in := commands.RuleInput{
		Frequency: strings.ToUpper(frequency),
		Interval:  interval,
	}
	for _, w := range weekdays {
		in.ByWeekday = append(in.ByWeekday, strings.ToUpper(w))
	}
	if monthDay != 0 {
		day := monthDay
		in.ByMonthDay = &day
	}
	switch {
	case until != "" && count != 0:
		return in, fmt.Errorf("--until and --count are mutually exclusive")
	case until != "":
		at, err := cli.ParseTime("until", until)
		if err != nil {
			return in, err
		}
		in.End = &commands.EndInput{Type: "until", Until: &at}
	case count != 0:
		n := count
		in.End = &commands.EndInput{Type: "count", Count: &n}
	}
	return in, nil
}

var clearCmd = &cobra.Command{
	Use:   "clear [event-id]",
	Short: "Make an event non-recurring",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.MustApp()
		if err != nil {
			return err
		}
		id, err := cli.ParseID("event id", args[0])
		if err != nil {
			return err
		}
		if err := app.ClearRuleHandler.Handle(cmd.Context(), commands.ClearRecurrenceRuleCommand{EventID: id}); err != nil {
			return fmt.Errorf("failed to clear rule: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Rule cleared: %s\n", id)
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show [event-id]",
	Short: "Show an event's rule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.MustApp()
		if err != nil {
			return err
		}
		id, err := cli.ParseID("event id", args[0])
		if err != nil {
			return err
		}
		series, err := app.GetSeriesHandler.Handle(cmd.Context(), id)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if series.Rule == nil {
			fmt.Fprintln(out, "not recurring")
			return nil
		}
		fmt.Fprintln(out, ical.FormatRRule(*series.Rule))
		return cli.PrintJSON(out, commands.RuleInputFrom(*series.Rule))
	},
}

func init() {
	setCmd.Flags().StringVar(&frequency, "freq", "", "DAILY, WEEKLY, MONTHLY or YEARLY")
	setCmd.Flags().IntVar(&interval, "interval", 1, "every n-th period")
	setCmd.Flags().StringSliceVar(&weekdays, "weekday", nil, "weekly days (SU,MO,TU,WE,TH,FR,SA)")
	setCmd.Flags().IntVar(&monthDay, "month-day", 0, "monthly day of month (clamped to short months)")
	setCmd.Flags().StringVar(&until, "until", "", "last possible start (RFC 3339)")
	setCmd.Flags().IntVar(&count, "count", 0, "number of occurrences")
	setCmd.Flags().StringVar(&file, "file", "", "YAML rule file instead of flags")

	Cmd.AddCommand(setCmd)
	Cmd.AddCommand(clearCmd)
	Cmd.AddCommand(showCmd)
}
