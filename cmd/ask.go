package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/querywise/internal/pipeline"
	"github.com/abhisek/querywise/internal/ui/report"
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer one question about the database",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		dsn, _ := cmd.Flags().GetString("dsn")
		asJSON, _ := cmd.Flags().GetBool("json")
		style, _ := cmd.Flags().GetString("style")

		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		ctx := cmd.Context()
		svc, err := e.services(ctx, dsn)
		if err != nil {
			return err
		}

		out, err := svc.pipeline.Run(ctx, pipeline.Request{
			UserID:   user,
			Question: strings.Join(args, " "),
		})
		if errors.Is(err, pipeline.ErrParseFailure) {
			return errors.New("I couldn't understand that request. Try rephrasing the question")
		}
		if err != nil {
			return err
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		}
		if err := report.Outcome(os.Stdout, out, report.Options{Style: style}); err != nil {
			return fmt.Errorf("render: %w", err)
		}
		return nil
	},
}

func init() {
	askCmd.Flags().StringP("user", "u", defaultUser(), "User the question is asked as")
	askCmd.Flags().String("dsn", "", "Database to query (overrides executor.dsn)")
	askCmd.Flags().Bool("json", false, "Print the outcome as JSON")
	askCmd.Flags().String("style", "dark", "Explanation style: dark, light, notty, ascii")
}

// defaultUser is $USER, or "default" when unset.
func defaultUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "default"
}
