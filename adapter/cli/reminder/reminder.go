// Package reminder holds the reminder commands.
package reminder

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/samber/mo"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/cadence/adapter/cli"
	"github.com/felixgeelhaar/cadence/internal/reminders/application/commands"
	"github.com/felixgeelhaar/cadence/internal/reminders/application/queries"
	"github.com/felixgeelhaar/cadence/internal/reminders/domain"
)

// Cmd is the reminder command group
var Cmd = &cobra.Command{
	Use:   "reminder",
	Short: "Manage reminders",
	Long:  `Schedule, list and cancel reminders for events and occurrences.`,
}

var (
	occurrenceStart string
	remindAt        string
	preset          string
	channel         string
	status          string
)

var addCmd = &cobra.Command{
	Use:   "add [event-id]",
	Short: "Schedule a reminder",
	Long: `Schedule a reminder at an absolute time (--at) or at a preset offset
before the occurrence (--preset 15m|1h|1d). Recurring events need
--occurrence, the original start of the targeted occurrence.

Examples:
  cadence reminder add <id> --occurrence 2024-01-08T09:00:00Z --preset 15m --channel email
  cadence reminder add <id> --at 2024-01-01T08:00:00Z --channel push`,
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
		schedule := commands.ScheduleReminderCommand{
			EventID: id,
			Preset:  domain.Preset(preset),
			Channel: domain.Channel(strings.ToLower(channel)),
		}
		if occurrenceStart != "" {
			at, err := cli.ParseTime("occurrence", occurrenceStart)
			if err != nil {
				return err
			}
			schedule.OccurrenceStart = mo.Some(at)
		}
		if remindAt != "" {
			if schedule.RemindAt, err = cli.ParseTime("at", remindAt); err != nil {
				return err
			}
		}

		result, err := app.ScheduleReminderHandler.Handle(cmd.Context(), schedule)
		if err != nil {
			return fmt.Errorf("failed to schedule reminder: %w", err)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Reminder scheduled: %s\n", result.Reminder.ID)
		fmt.Fprintf(out, "  remind at: %s\n", result.Reminder.RemindAt.Format(time.RFC3339))
		fmt.Fprintf(out, "  channel: %s\n", result.Reminder.Channel)
		if result.Late {
			fmt.Fprintln(out, "  note: fires after the occurrence has started")
		}
		return nil
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel [reminder-id]",
	Short: "Cancel a pending reminder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.MustApp()
		if err != nil {
			return err
		}
		id, err := cli.ParseID("reminder id", args[0])
		if err != nil {
			return err
		}
		if err := app.CancelReminderHandler.Handle(cmd.Context(), commands.CancelReminderCommand{ReminderID: id}); err != nil {
			return fmt.Errorf("failed to cancel reminder: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Reminder cancelled: %s\n", id)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list [event-id]",
	Short: "List an event's reminders",
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
		query := queries.ListRemindersQuery{EventID: id, Status: domain.Status(strings.ToUpper(status))}
		if status != "" && !query.Status.IsValid() {
			return fmt.Errorf("unknown status %q", status)
		}
		reminders, err := app.ListRemindersHandler.Handle(cmd.Context(), query)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tREMIND AT\tCHANNEL\tSTATUS\tRETRIES")
		for _, r := range reminders {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n", r.ID, r.RemindAt.Format(time.RFC3339), r.Channel, r.Status, r.RetryCount)
		}
		return w.Flush()
	},
}

func init() {
	addCmd.Flags().StringVar(&occurrenceStart, "occurrence", "", "original start of the occurrence (RFC 3339)")
	addCmd.Flags().StringVar(&remindAt, "at", "", "absolute fire time (RFC 3339)")
	addCmd.Flags().StringVar(&preset, "preset", "", "offset before the occurrence: 15m, 1h or 1d")
	addCmd.Flags().StringVar(&channel, "channel", string(domain.ChannelInApp), "in_app, email, sms or push")
	addCmd.MarkFlagsMutuallyExclusive("at", "preset")
	addCmd.MarkFlagsOneRequired("at", "preset")
	listCmd.Flags().StringVar(&status, "status", "", "only reminders with this status")

	Cmd.AddCommand(addCmd)
	Cmd.AddCommand(cancelCmd)
	Cmd.AddCommand(listCmd)
}
