// Package occurrence holds the commands that read and override occurrences.
package occurrence

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/cadence/adapter/cli"
	"github.com/felixgeelhaar/cadence/internal/recurrence/application/commands"
	"github.com/felixgeelhaar/cadence/internal/recurrence/application/queries"
	"github.com/felixgeelhaar/cadence/internal/recurrence/infrastructure/ical"
	"github.com/felixgeelhaar/cadence/internal/shared/infrastructure/security"
)

// ListCmd is the occurrences command group
var ListCmd = &cobra.Command{
	Use:   "occurrences",
	Short: "List or export an event's occurrences",
}

// Cmd is the occurrence command group
var Cmd = &cobra.Command{
	Use:   "occurrence",
	Short: "Reschedule, cancel or restore one occurrence",
	Long: `Override a single occurrence, identified by the start the rule
generated for it (its original start).`,
}

var (
	from     string
	to       string
	output   string
	asJSON   bool
	newStart string
	newEnd   string
)

func windowQuery(eventArg string) (queries.ListOccurrencesQuery, error) {
	id, err := cli.ParseID("event id", eventArg)
	if err != nil {
		return queries.ListOccurrencesQuery{}, err
	}
	fromAt, err := cli.ParseTime("from", from)
	if err != nil {
		return queries.ListOccurrencesQuery{}, err
	}
	toAt, err := cli.ParseTime("to", to)
	if err != nil {
		return queries.ListOccurrencesQuery{}, err
	}
	return queries.ListOccurrencesQuery{EventID: id, From: fromAt, To: toAt}, nil
}

var listCmd = &cobra.Command{
	Use:   "list [event-id]",
	Short: "List occurrences in a window",
	Long: `List the visible occurrences of an event in [from, to], after
overrides. Cancelled occurrences are omitted.

Examples:
  cadence occurrences list <id> --from 2024-01-01T00:00:00Z --to 2024-02-01T00:00:00Z`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.MustApp()
		if err != nil {
			return err
		}
		query, err := windowQuery(args[0])
		if err != nil {
			return err
		}
		occurrences, err := app.ListOccurrencesHandler.Handle(cmd.Context(), query)
		if err != nil {
			return err
		}
		if asJSON {
			return cli.PrintJSON(cmd.OutOrStdout(), occurrences)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ORIGINAL START\tSTART\tEND\tRESCHEDULED")
		for _, occ := range occurrences {
			fmt.Fprintf(w, "%s\t%s\t%s\t%t\n",
				occ.OriginalStart.Format(time.RFC3339),
				occ.Start.Format(time.RFC3339),
				occ.End.Format(time.RFC3339),
				occ.Rescheduled,
			)
		}
		return w.Flush()
	},
}

var exportCmd = &cobra.Command{
	Use:   "export [event-id]",
	Short: "Export occurrences as iCalendar",
	Long: `Export the occurrences in [from, to] to ICS for import into calendar apps.

Examples:
  cadence occurrences export <id> --from 2024-01-01T00:00:00Z --to 2024-12-31T23:59:59Z -o standup.ics`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.MustApp()
		if err != nil {
			return err
		}
		query, err := windowQuery(args[0])
		if err != nil {
			return err
		}
		series, resolved, err := app.ListOccurrencesHandler.Resolve(cmd.Context(), query)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		if output != "" {
			f, err := security.CreateFile(output)
			if err != nil {
				return fmt.Errorf("failed to create file: %w", err)
			}
			defer f.Close()
			w = f
		}
		if err := ical.Export(w, series.Event, resolved, app.Clock.Now()); err != nil {
			return err
		}
		if output != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d occurrences to %s\n", len(resolved), output)
		}
		return nil
	},
}

var calendarCmd = &cobra.Command{
	Use:   "calendar",
	Short: "List every event's occurrences in a window",
	Long: `List the visible occurrences of all events in [from, to], ordered by
start. With -o the window is written as one ICS file.

Examples:
  cadence occurrences calendar --from 2024-01-01T00:00:00Z --to 2024-01-08T00:00:00Z
  cadence occurrences calendar --from 2024-01-01T00:00:00Z --to 2024-12-31T23:59:59Z -o all.ics`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := cli.MustApp()
		if err != nil {
			return err
		}
		fromAt, err := cli.ParseTime("from", from)
		if err != nil {
			return err
		}
		toAt, err := cli.ParseTime("to", to)
		if err != nil {
			return err
		}
		query := queries.ListCalendarQuery{From: fromAt, To: toAt}

		if output != "" {
			resolved, _, err := app.ListCalendarHandler.Resolve(cmd.Context(), query)
			if err != nil {
				return err
			}
			entries := make([]ical.Entry, 0, len(resolved))
			count := 0
			for _, e := range resolved {
				entries = append(entries, ical.Entry{Event: e.Series.Event, Occurrences: e.Occurrences})
				count += len(e.Occurrences)
			}
			f, err := security.CreateFile(output)
			if err != nil {
				return fmt.Errorf("failed to create file: %w", err)
			}
			defer f.Close()
			if err := ical.ExportCalendar(f, entries, app.Clock.Now()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d occurrences to %s\n", count, output)
			return nil
		}

		calendar, err := app.ListCalendarHandler.Handle(cmd.Context(), query)
		if err != nil {
			return err
		}
		if asJSON {
			return cli.PrintJSON(cmd.OutOrStdout(), calendar)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "START\tEND\tTITLE\tEVENT")
		for _, occ := range calendar.Occurrences {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				occ.Start.Format(time.RFC3339),
				occ.End.Format(time.RFC3339),
				occ.Title,
				occ.EventID,
			)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		for _, id := range calendar.Corrupt {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: skipped event %s, its recurrence rule is unreadable\n", id)
		}
		return nil
	},
}

var rescheduleCmd = &cobra.Command{
	Use:   "reschedule [event-id] [original-start]",
	Short: "Move one occurrence",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.MustApp()
		if err != nil {
			return err
		}
		id, original, err := occurrenceArgs(args)
		if err != nil {
			return err
		}
		startAt, err := cli.ParseTime("start", newStart)
		if err != nil {
			return err
		}
		endAt, err := cli.ParseTime("end", newEnd)
		if err != nil {
			return err
		}
		override, err := app.OccurrenceHandler.Reschedule(cmd.Context(), commands.RescheduleOccurrenceCommand{
			EventID:       id,
			OriginalStart: original,
			NewStart:      startAt,
			NewEnd:        endAt,
		})
		if err != nil {
			return fmt.Errorf("failed to reschedule occurrence: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Occurrence %s moved to %s\n",
			override.OriginalStart.Format(time.RFC3339), override.Start.Format(time.RFC3339))
		return nil
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel [event-id] [original-start]",
	Short: "Cancel one occurrence and its pending reminders",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.MustApp()
		if err != nil {
			return err
		}
		id, original, err := occurrenceArgs(args)
		if err != nil {
			return err
		}
		if err := app.OccurrenceHandler.Cancel(cmd.Context(), commands.CancelOccurrenceCommand{EventID: id, OriginalStart: original}); err != nil {
			return fmt.Errorf("failed to cancel occurrence: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Occurrence %s cancelled\n", original.UTC().Format(time.RFC3339))
		return nil
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore [event-id] [original-start]",
	Short: "Drop the override of one occurrence",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.MustApp()
		if err != nil {
			return err
		}
		id, original, err := occurrenceArgs(args)
		if err != nil {
			return err
		}
		if err := app.OccurrenceHandler.Restore(cmd.Context(), commands.RestoreOccurrenceCommand{EventID: id, OriginalStart: original}); err != nil {
			return fmt.Errorf("failed to restore occurrence: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Occurrence %s restored\n", original.UTC().Format(time.RFC3339))
		return nil
	},
}

func occurrenceArgs(args []string) (uuid.UUID, time.Time, error) {
	id, err := cli.ParseID("event id", args[0])
	if err != nil {
		return uuid.Nil, time.Time{}, err
	}
	original, err := cli.ParseTime("original start", args[1])
	return id, original, err
}

func init() {
	for _, c := range []*cobra.Command{listCmd, exportCmd, calendarCmd} {
		c.Flags().StringVar(&from, "from", "", "window start (RFC 3339)")
		c.Flags().StringVar(&to, "to", "", "window end (RFC 3339)")
		_ = c.MarkFlagRequired("from")
		_ = c.MarkFlagRequired("to")
	}
	listCmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	calendarCmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	exportCmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	calendarCmd.Flags().StringVarP(&output, "output", "o", "", "write an ICS file")
	rescheduleCmd.Flags().StringVar(&newStart, "start", "", "new start (RFC 3339)")
	rescheduleCmd.Flags().StringVar(&newEnd, "end", "", "new end (RFC 3339)")
	_ = rescheduleCmd.MarkFlagRequired("start")
	_ = rescheduleCmd.MarkFlagRequired("end")

	ListCmd.AddCommand(listCmd)
	ListCmd.AddCommand(exportCmd)
	ListCmd.AddCommand(calendarCmd)
	Cmd.AddCommand(rescheduleCmd)
	Cmd.AddCommand(cancelCmd)
	Cmd.AddCommand(restoreCmd)
}
