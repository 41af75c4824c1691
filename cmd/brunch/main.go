// Command brunch inspects the files a benchmark suite leaves behind:
// the last-run history file and, when enabled, the sqlite run archive.
package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Blobfolio/brunch/internal/archive"
	"github.com/Blobfolio/brunch/internal/history"
)

var (
	historyPath string
	archivePath string
)

func defaultArchivePath() string {
	if p := os.Getenv(archive.Env); p != "" {
		return p
	}
	return "brunch.db"
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "brunch",
		Short: "Inspect benchmark history and archives",
	}

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Manage the last-run history file",
	}
	historyCmd.PersistentFlags().StringVar(&historyPath, "file", "", "history file (default: "+history.EnvPath+" or the temp dir)")
	historyCmd.AddCommand(historyShowCmd())
	historyCmd.AddCommand(historyClearCmd())

	archiveCmd := &cobra.Command{
		Use:   "archive",
		Short: "Query the run archive database",
	}
	archiveCmd.PersistentFlags().StringVar(&archivePath, "db", defaultArchivePath(), "archive database path")
	archiveCmd.AddCommand(archiveListCmd())
	archiveCmd.AddCommand(archiveShowCmd())
	archiveCmd.AddCommand(archiveTrendCmd())
	archiveCmd.AddCommand(archiveDeleteCmd())

	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(archiveCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openHistory() *history.Store {
	if historyPath != "" {
		os.Setenv(history.EnvPath, historyPath)
	}
	return history.NewStore()
}

func historyShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the recorded last-run statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			store := openHistory()
			if !store.Enabled() {
				return fmt.Errorf("history is disabled (%s=1)", history.EnvDisable)
			}

			records, err := store.Load()
			if err != nil {
				color.Yellow("Warning: %v", err)
			}
			if len(records) == 0 {
				fmt.Printf("No history at %s\n", store.Path())
				return nil
			}

			names := make([]string, 0, len(records))
			for name := range records {
				names = append(names, name)
			}
			sort.Strings(names)

			cyan := color.New(color.FgCyan)
			dim := color.New(color.Faint)

			_, _ = cyan.Printf("%-40s %15s %15s\n", "Method", "Mean", "StdDev")
			_, _ = dim.Println(strings.Repeat("-", 72))
			for _, name := range names {
				st := records[name]
				fmt.Printf("%-40s %15s %15s\n", name,
					formatDuration(st.MeanNs), formatDuration(st.StdDevNs))
			}
			_, _ = dim.Printf("\n%d entries in %s\n", len(records), store.Path())
			return nil
		},
	}
}

func historyClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete the history file",
		RunE: func(cmd *cobra.Command, args []string) error {
			store := openHistory()
			if !store.Enabled() {
				return fmt.Errorf("history is disabled (%s=1)", history.EnvDisable)
			}

			if err := os.Remove(store.Path()); err != nil {
				if os.IsNotExist(err) {
					fmt.Printf("Nothing to clear at %s\n", store.Path())
					return nil
				}
				return err
			}
			color.Green("Removed %s", store.Path())
			return nil
		},
	}
}

func openArchive() (*archive.DB, func(), error) {
	db, err := archive.Open(archivePath)
	if err != nil {
		return nil, nil, err
	}
	closer := func() {
		if err := db.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Error closing archive: %v\n", err)
		}
	}
	return db, closer, nil
}

func archiveListCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List archived runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, closeDB, err := openArchive()
			if err != nil {
				return err
			}
			defer closeDB()

			runs, err := db.ListRuns(limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Println("No runs archived")
				return nil
			}

			cyan := color.New(color.FgCyan)
			dim := color.New(color.Faint)

			_, _ = cyan.Printf("%-6s %-25s %s\n", "ID", "Date", "Benchmarks")
			_, _ = dim.Println(strings.Repeat("-", 45))

			for _, r := range runs {
				count, err := db.CountResultsForRun(r.ID)
				if err != nil {
					return err
				}
				fmt.Printf("%-6d %-25s %d\n", r.ID, r.RunDate, count)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "max runs to show")

	return cmd
}

func archiveShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [run_id]",
		Short: "Show all results from one archived run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid run ID: %w", err)
			}

			db, closeDB, err := openArchive()
			if err != nil {
				return err
			}
			defer closeDB()

			results, err := db.GetResultsForRun(id)
			if err != nil {
				return err
			}
			if len(results) == 0 {
				return fmt.Errorf("run #%d not found", id)
			}

			cyan := color.New(color.FgCyan)
			dim := color.New(color.Faint)

			_, _ = cyan.Printf("Run #%d\n", id)
			_, _ = dim.Println(strings.Repeat("-", 76))
			_, _ = cyan.Printf("%-40s %12s %12s %10s\n", "Method", "Mean", "StdDev", "Samples")
			for _, r := range results {
				fmt.Printf("%-40s %12s %12s %6d/%d\n", r.Name,
					formatDuration(r.MeanNs), formatDuration(r.StdDevNs),
					r.Valid, r.Total)
			}
			return nil
		},
	}
}

func archiveTrendCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "trend [benchmark_name]",
		Short: "Show one benchmark's mean over archived runs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, closeDB, err := openArchive()
			if err != nil {
				return err
			}
			defer closeDB()

			trends, err := db.Trend(args[0], limit)
			if err != nil {
				return err
			}
			if len(trends) == 0 {
				fmt.Printf("No results found matching '%s'\n", args[0])
				return nil
			}

			cyan := color.New(color.FgCyan)
			dim := color.New(color.Faint)

			_, _ = cyan.Printf("Trend for: %s\n\n", trends[0].Result.Name)
			_, _ = cyan.Printf("%-6s %-25s %12s %s\n", "Run", "Date", "Mean", "Trend")
			_, _ = dim.Println(strings.Repeat("-", 70))

			var maxNs float64
			for _, t := range trends {
				if t.Result.MeanNs > maxNs {
					maxNs = t.Result.MeanNs
				}
			}

			// Oldest first so the bars read left to right in time.
			for i := len(trends) - 1; i >= 0; i-- {
				t := trends[i]

				barLen := 0
				if maxNs > 0 {
					barLen = int(t.Result.MeanNs / maxNs * 20)
				}
				if barLen > 20 {
					barLen = 20
				} else if barLen < 0 {
					barLen = 0
				}
				bar := strings.Repeat("█", barLen) + strings.Repeat("░", 20-barLen)

				fmt.Printf("%-6d %-25s %12s %s\n",
					t.Run.ID, t.Run.RunDate,
					formatDuration(t.Result.MeanNs), bar)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "max data points")

	return cmd
}

func archiveDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [run_id]",
		Short: "Delete an archived run and its results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid run ID: %w", err)
			}

			db, closeDB, err := openArchive()
			if err != nil {
				return err
			}
			defer closeDB()

			if err := db.DeleteRun(id); err != nil {
				return err
			}
			color.Green("Deleted run #%d", id)
			return nil
		},
	}
}

func formatDuration(ns float64) string {
	if ns < 1000 {
		return fmt.Sprintf("%.2fns", ns)
	} else if ns < 1_000_000 {
		return fmt.Sprintf("%.2fus", ns/1000)
	} else if ns < 1_000_000_000 {
		return fmt.Sprintf("%.2fms", ns/1_000_000)
	}
	return fmt.Sprintf("%.2fs", ns/1_000_000_000)
}
