package cmd

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/xsslab/xsslab/internal/progress"
)

func newProgressCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "progress",
		Short: "Track completed lessons, learning paths and challenges",
		Long: `Record and show learning progress. Progress is stored as a single
document in the configured backend (a JSON file by default, or Redis).

Examples:
  xsslab progress show
  xsslab progress complete-lesson dom-sinks --path basics
  xsslab progress complete-path basics
  xsslab progress attempt reflected-1
  xsslab progress complete-challenge reflected-1 --solution '<svg onload=alert(1)>'
  xsslab progress reset`,
	}
	cmd.AddCommand(
		newProgressShowCmd(a),
		newProgressLessonCmd(a),
		newProgressPathCmd(a),
		newProgressAttemptCmd(a),
		newProgressChallengeCmd(a),
		newProgressResetCmd(a),
	)
	return cmd
}

func (a *app) tracker(cmd *cobra.Command) *progress.Tracker {
	backend := progress.NewBackend(cmd.Context(), a.cfg, a.log)
	return progress.NewTracker(backend, a.log, a.cfg.Progress.TTL)
}

func newProgressShowCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show recorded progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := a.tracker(cmd).Load(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if ok, err := writeStructured(out, a.v.GetString("format"), doc); ok {
				return err
			}
			printProgress(out, doc)
			return nil
		},
	}
	cmd.Flags().String("format", "table", "output format (table, json, yaml)")
	return cmd
}

func newProgressLessonCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "complete-lesson lesson-id",
		Short: "Mark a lesson as completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := a.tracker(cmd).CompleteLesson(cmd.Context(), a.v.GetString("path"), args[0])
			if err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "%s lesson %s (%d lessons completed)\n",
				green("Completed"), args[0], doc.Stats.LessonsCompleted)
			return nil
		},
	}
	cmd.Flags().String("path", "", "learning path the lesson belongs to")
	return cmd
}

func newProgressPathCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "complete-path path-id",
		Short: "Mark a learning path as completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.tracker(cmd).CompletePath(cmd.Context(), args[0]); err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "%s path %s\n", green("Completed"), args[0])
			return nil
		},
	}
}

func newProgressAttemptCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "attempt challenge-id",
		Short: "Count a failed attempt at a challenge",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := a.tracker(cmd).RecordAttempt(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "Challenge %s: %d attempts\n", args[0], doc.Challenges[args[0]].Attempts)
			return nil
		},
	}
}

func newProgressChallengeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "complete-challenge challenge-id",
		Short: "Mark a challenge as solved",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := a.tracker(cmd).CompleteChallenge(cmd.Context(), args[0], a.v.GetString("solution"))
			if err != nil {
				return err
			}
			c := doc.Challenges[args[0]]
			printf(cmd.OutOrStdout(), "%s challenge %s after %d attempts\n", green("Solved"), args[0], c.Attempts)
			return nil
		},
	}
	cmd.Flags().String("solution", "", "payload that solved the challenge")
	return cmd
}

func newProgressResetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Delete all recorded progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.tracker(cmd).Reset(cmd.Context()); err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "%s\n", yellow("Progress reset"))
			return nil
		},
	}
}

func printProgress(out io.Writer, doc *progress.Document) {
	s := doc.Stats
	printf(out, "%s %d lessons, %d challenges solved, %d attempts\n",
		heading("Progress:"), s.LessonsCompleted, s.ChallengesCompleted, s.TotalAttempts)
	if !s.LastActivity.IsZero() {
		printf(out, "%s %s\n", faint("Last activity:"), s.LastActivity.Local().Format("2006-01-02 15:04"))
	}

	if len(doc.Paths) > 0 {
		fmt.Fprintln(out)
		table := newTable(out, "Path", "Lessons", "Status")
		for _, id := range sortedKeys(doc.Paths) {
			p := doc.Paths[id]
			status := "in progress"
			if p.Completed {
				status = green("completed")
			}
			table.Append([]string{id, strconv.Itoa(len(p.CompletedLessons)), status})
		}
		table.Render()
	}

	if len(doc.Challenges) > 0 {
		fmt.Fprintln(out)
		table := newTable(out, "Challenge", "Attempts", "Status", "Solution")
		for _, id := range sortedKeys(doc.Challenges) {
			c := doc.Challenges[id]
			status := "open"
			if c.Completed {
				status = green("solved")
			}
			table.Append([]string{id, strconv.Itoa(c.Attempts), status, truncate(c.Solution, 40)})
		}
		table.Render()
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
