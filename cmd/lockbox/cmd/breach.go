package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmcleod/lockbox/breach"
)

var breachCmd = &cobra.Command{
	Use:   "breach",
	Short: "Check passwords against the Pwned Passwords range API",
}

var breachCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check a single password",
	Long: `Check a single password. Only the first five characters of its SHA-1
hash leave this machine.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pw, err := newPrompter(cmd).secret("Password to check: ")
		if err != nil {
			return err
		}
		c, err := newBreachClient(cfg.Breach)
		if err != nil {
			return err
		}
		res, err := c.CheckPassword(cmd.Context(), pw)
		fmt.Fprintln(cmd.OutOrStdout(), res.Message())
		return err
	},
}

var breachAuditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Check every stored password",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newBreachClient(cfg.Breach)
		if err != nil {
			return err
		}
		v, closeRepo, err := openVault(cmd.Context())
		defer closeRepo()
		if err != nil {
			return err
		}
		s, err := unlock(cmd.Context(), newPrompter(cmd), v)
		if err != nil {
			return err
		}
		records, err := s.Records(cmd.Context())
		s.Lock()
		if err != nil {
			return err
		}

		entries := make([]breach.Entry, len(records))
		for i, r := range records {
			entries[i] = breach.Entry{ID: r.ID, Site: r.Site, Username: r.Username, Password: r.Password}
		}

		out := cmd.OutOrStdout()
		var results []breach.AuditResult
		for r := range c.Audit(cmd.Context(), entries) {
			fmt.Fprintf(out, "%-9s %s (%s): %s\n", r.Status, r.Site, r.Username, r.Message)
			results = append(results, r)
		}
		sum := breach.Summarize(results)
		fmt.Fprintf(out, "\n%d breached, %d safe, %d unknown\n", sum.Breached, sum.Safe, sum.Unknown)
		return breach.AuditIncomplete(cmd.Context(), len(results), len(entries))
	},
}

func init() {
	rootCmd.AddCommand(breachCmd)
	breachCmd.AddCommand(breachCheckCmd, breachAuditCmd)
}
