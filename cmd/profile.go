package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/abhisek/querywise/internal/ui/report"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Inspect and seed user profiles",
}

var profileShowCmd = &cobra.Command{
	Use:   "show [user]",
	Short: "Show a user's profile",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		user := defaultUser()
		if len(args) == 1 {
			user = args[0]
		}
		asJSON, _ := cmd.Flags().GetBool("json")

		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		p, err := e.profiles.Get(cmd.Context(), user)
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(p)
		}
		report.Profile(os.Stdout, p)
		return nil
	},
}

var profileSetLevelCmd = &cobra.Command{
	Use:   "set-level <user> <1-5>",
	Short: "Set a user's self-reported expertise",
	Long: "Set a user's self-reported SQL expertise. Capacity and per-concept " +
		"levels are derived from it, replacing what was learned so far.",
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		level, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid level %q: %w", args[1], err)
		}

		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		p, err := e.profiles.Seed(cmd.Context(), args[0], level)
		if err != nil {
			return err
		}
		report.Profile(os.Stdout, p)
		return nil
	},
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		profiles, err := e.profiles.List(cmd.Context())
		if err != nil {
			return err
		}
		if len(profiles) == 0 {
			fmt.Println("No profiles yet.")
			return nil
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(profiles)
		}
		report.Profiles(os.Stdout, profiles)
		return nil
	},
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	profileShowCmd.Flags().Bool("json", false, "Print as JSON")
	profileListCmd.Flags().Bool("json", false, "Print as JSON")

	profileCmd.AddCommand(profileShowCmd)
	profileCmd.AddCommand(profileSetLevelCmd)
	profileCmd.AddCommand(profileListCmd)
}
