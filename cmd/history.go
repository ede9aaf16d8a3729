package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"deposit-bridge/pkg/history"
)

var historyStatusFilter string

var historyCmd = &cobra.Command{
	Use:   "history [id]",
	Short: "Show past deposits",
	Long: `List recorded deposits, newest first, or show one record in detail.

Examples:
  deposit-bridge history
  deposit-bridge history --status failed
  deposit-bridge history 3f2a`,
	Args: cobra.MaximumNArgs(1),
	Run:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().StringVar(&historyStatusFilter, "status", "", "Filter by status (submitted, confirmed, failed)")
}

func runHistory(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	store, err := history.NewStore(cfg.HistoryPath)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if len(args) == 1 {
		record, err := store.Get(args[0])
		if err != nil {
			printError(err)
			os.Exit(1)
		}
		if jsonOutput {
			output, _ := json.MarshalIndent(record, "", "  ")
			fmt.Println(string(output))
			return
		}
		displayRecord(record)
		return
	}

	var records []*history.Record
	if historyStatusFilter != "" {
		records = store.ListByStatus(history.Status(historyStatusFilter))
	} else {
		records = store.List()
	}

	if jsonOutput {
		output, _ := json.MarshalIndent(records, "", "  ")
		fmt.Println(string(output))
		return
	}

	if len(records) == 0 {
		color.Yellow("No deposits recorded yet.\n")
		fmt.Println("\nMake one with:")
		color.Cyan("  deposit-bridge deposit <amount> <token> [on <chain>]\n")
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 110))
	color.Green("                                              DEPOSITS")
	fmt.Println(strings.Repeat("=", 110))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\nID\tWHEN\tAMOUNT\tCHAIN\tROUTE\tSTATUS\tHASH")
	fmt.Fprintln(w, strings.Repeat("-", 110))

	for _, r := range records {
		route := "bridge"
		if r.Direct {
			route = "direct"
		}
		fmt.Fprintf(w, "%s\t%s\t%s %s\t%s\t%s\t%s\t%s\n",
			r.ID[:8],
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
			r.Amount, r.Symbol,
			r.Chain,
			route,
			getRecordStatusColor(r.Status),
			truncateString(r.Hash, 24))
	}

	w.Flush()
	fmt.Println("\n" + strings.Repeat("=", 110) + "\n")
}

func displayRecord(r *history.Record) {
	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                        DEPOSIT")
	fmt.Println(strings.Repeat("=", 70))

	fmt.Printf("\n  ID:          %s\n", r.ID)
	fmt.Printf("  Created:     %s\n", r.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Printf("  Amount:      %s %s on %s\n", r.Amount, color.YellowString(r.Symbol), r.Chain)
	fmt.Printf("  Status:      %s\n", getRecordStatusColor(r.Status))
	if r.Hash != "" {
		fmt.Printf("  Transaction: %s\n", color.CyanString(r.Hash))
	}
	if r.Error != "" {
		fmt.Printf("  Error:       %s (%s)\n", color.RedString(r.Error), r.ErrorKind)
	}

	if len(r.Attempts) > 0 {
		fmt.Println("\n  Attempts:")
		for i, at := range r.Attempts {
			mode := "unsponsored"
			if at.Sponsored {
				mode = "sponsored"
			}
			line := fmt.Sprintf("    %d. %-9s %-12s %s", i+1, at.Purpose, mode, at.Outcome)
			if at.Hash != "" {
				line += "  " + color.HiBlackString(at.Hash)
			}
			if at.FailureReason != "" {
				line += "  " + color.RedString(at.FailureReason)
			}
			fmt.Println(line)
		}
	}

	fmt.Println("\n" + strings.Repeat("=", 70) + "\n")
}

func getRecordStatusColor(status history.Status) string {
	switch status {
	case history.StatusConfirmed:
		return color.GreenString(string(status))
	case history.StatusSubmitted:
		return color.YellowString(string(status))
	case history.StatusFailed:
		return color.RedString(string(status))
	default:
		return string(status)
	}
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
