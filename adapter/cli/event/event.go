// Package event holds the event commands.
package event

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/cadence/adapter/cli"
	"github.com/felixgeelhaar/cadence/internal/recurrence/application/commands"
	"github.com/felixgeelhaar/cadence/internal/shared/infrastructure/security"
)

// Cmd is the event command group
var Cmd = &cobra.Command{
	Use:   "event",
	Short: "Manage events",
	Long:  `Create, show and delete anchor events.`,
}

var (
	start    string
	end      string
	timezone string
	ruleFile string
)

var createCmd = &cobra.Command{
	Use:   "create [title]",
	Short: "Create an event",
	Long: `Create an anchor event. Pass --rule with a YAML rule file to make it
recurring right away.

Examples:
  cadence event create "Standup" --start 2024-01-01T09:00:00Z --end 2024-01-01T09:15:00Z
  cadence event create "Review" --start 2024-01-05T14:00:00+01:00 --end 2024-01-05T15:00:00+01:00 --tz Europe/Berlin --rule weekly.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.MustApp()
		if err != nil {
			return err
		}
		startAt, err := cli.ParseTime("start", start)
		if err != nil {
			return err
		}
		endAt, err := cli.ParseTime("end", end)
		if err != nil {
			return err
		}
		create := commands.CreateEventCommand{
			Title:    args[0],
			Start:    startAt,
			End:      endAt,
			Timezone: timezone,
		}
		if ruleFile != "" {
			rule, err := ReadRuleFile(ruleFile)
			if err != nil {
				return err
			}
			create.Rule = &rule
		}

		event, err := app.CreateEventHandler.Handle(cmd.Context(), create)
		if err != nil {
			return fmt.Errorf("failed to create event: %w", err)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Event created: %s\n", event.ID())
		fmt.Fprintf(out, "  title: %s\n", event.Title())
		fmt.Fprintf(out, "  recurring: %t\n", event.IsRecurring())
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show [event-id]",
	Short: "Show an event",
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
		return cli.PrintJSON(cmd.OutOrStdout(), series)
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete [event-id]",
	Short: "Delete an event with its rule, overrides and reminders",
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
		if err := app.DeleteEventHandler.Handle(cmd.Context(), commands.DeleteEventCommand{EventID: id}); err != nil {
			return fmt.Errorf("failed to delete event: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Event deleted: %s\n", id)
		return nil
	},
}

// ReadRuleFile loads a rule from a YAML file.
func ReadRuleFile(path string) (commands.RuleInput, error) {
	var rule commands.RuleInput
	data, err := security.ReadFile(path)
	if err != nil {
		return rule, fmt.Errorf("read rule file: %w", err)
	}
	if err := yaml.Unmarshal(data, &rule); err != nil {
		return rule, fmt.Errorf("parse rule file %s: %w", path, err)
	}
	return rule, nil
}

func init() {
	createCmd.Flags().StringVar(&start, "start", "", "start time (RFC 3339)")
	createCmd.Flags().StringVar(&end, "end", "", "end time (RFC 3339)")
	createCmd.Flags().StringVar(&timezone, "tz", "UTC", "IANA timezone occurrences keep their wall-clock time in")
	createCmd.Flags().StringVar(&ruleFile, "rule", "", "YAML rule file")
	_ = createCmd.MarkFlagRequired("start")
	_ = createCmd.MarkFlagRequired("end")

	Cmd.AddCommand(createCmd)
	Cmd.AddCommand(showCmd)
	Cmd.AddCommand(deleteCmd)
}
