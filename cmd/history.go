package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/abhisek/querywise/internal/store"
	"github.com/abhisek/querywise/internal/ui/report"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent questions and how they were handled",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		user, _ := cmd.Flags().GetString("user")
		asJSON, _ := cmd.Flags().GetBool("json")

		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		ctx := cmd.Context()
		events, err := e.store.Events().QueryInteractions(ctx, store.QueryOpts{Limit: limit, UserID: user})
		if err != nil {
			return fmt.Errorf("query history: %w", err)
		}
		if asJSON {
			return printJSON(events)
		}
		if len(events) == 0 {
			fmt.Println("No questions asked yet.")
			return nil
		}

		stats, err := e.store.Events().InteractionStatsFor(ctx, user)
		if err != nil {
			return fmt.Errorf("history stats: %w", err)
		}
		report.History(os.Stdout, events, stats)
		return nil
	},
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 20, "Number of interactions to show")
	historyCmd.Flags().StringP("user", "u", "", "Only show this user's questions")
	historyCmd.Flags().Bool("json", false, "Print as JSON")
}
