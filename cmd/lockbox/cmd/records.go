package cmd

import (
	"encoding/json"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jmcleod/lockbox/passgen"
	"github.com/jmcleod/lockbox/vault"
)

var recordsCmd = &cobra.Command{
	Use:     "records",
	Aliases: []string{"rec"},
	Short:   "Manage stored credentials",
}

var recordsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored credentials",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		showPasswords, _ := cmd.Flags().GetBool("show-passwords")
		asJSON, _ := cmd.Flags().GetBool("json")

		v, closeRepo, err := openVault(cmd.Context())
		defer closeRepo()
		if err != nil {
			return err
		}
		s, err := unlock(cmd.Context(), newPrompter(cmd), v)
		if err != nil {
			return err
		}
		defer s.Lock()

		records, err := s.Records(cmd.Context())
		if err != nil {
			return err
		}
		if records == nil {
			records = []vault.Record{}
		}
		if !showPasswords {
			for i := range records {
				records[i].Password = "********"
			}
		}

		if asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(records)
		}
		if len(records) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No records.")
			return nil
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSITE\tUSERNAME\tPASSWORD\t2FA\tCREATED")
		for _, r := range records {
			twoFactor := ""
			if r.TOTPSecret != "" {
				twoFactor = "yes"
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n", r.ID, r.Site, r.Username, r.Password, twoFactor, r.CreatedAt)
		}
		return w.Flush()
	},
}

var recordsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a credential",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		site, _ := cmd.Flags().GetString("site")
		username, _ := cmd.Flags().GetString("username")
		totpSecret, _ := cmd.Flags().GetString("totp-secret")
		generate, _ := cmd.Flags().GetBool("generate")
		length, _ := cmd.Flags().GetInt("length")

		p := newPrompter(cmd)
		v, closeRepo, err := openVault(cmd.Context())
		defer closeRepo()
		if err != nil {
			return err
		}
		s, err := unlock(cmd.Context(), p, v)
		if err != nil {
			return err
		}
		defer s.Lock()

		var password string
		if generate {
			password, err = passgen.Generate(length, passgen.DefaultOptions())
		} else {
			password, err = p.secret("Password for " + site + ": ")
		}
		if err != nil {
			return err
		}

		rec, err := s.AddRecord(cmd.Context(), vault.NewRecord{
			Site:       site,
			Username:   username,
			Password:   password,
			TOTPSecret: totpSecret,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added record %d for %s.\n", rec.ID, rec.Site)
		if generate {
			fmt.Fprintf(cmd.OutOrStdout(), "Generated password: %s\n", password)
		}
		return nil
	},
}

var recordsDeleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	Short:   "Delete a credential",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseRecordID(args[0])
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
		defer s.Lock()

		if err := s.DeleteRecord(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted record %d.\n", id)
		return nil
	},
}

var recordsReclaimCmd = &cobra.Command{
	Use:   "reclaim",
	Short: "Merge records left behind by a recovery, using the forgotten passphrase",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p := newPrompter(cmd)
		v, closeRepo, err := openVault(cmd.Context())
		defer closeRepo()
		if err != nil {
			return err
		}
		has, err := v.HasOrphaned(cmd.Context())
		if err != nil {
			return err
		}
		if !has {
			fmt.Fprintln(cmd.OutOrStdout(), "Nothing to reclaim.")
			return nil
		}
		s, err := unlock(cmd.Context(), p, v)
		if err != nil {
			return err
		}
		defer s.Lock()

		old, err := p.secret("Previous master passphrase: ")
		if err != nil {
			return err
		}
		n, err := s.ReclaimOrphaned(cmd.Context(), old)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Reclaimed %d records.\n", n)
		return nil
	},
}

func parseRecordID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid record id %q", s)
	}
	return id, nil
}

func init() {
	rootCmd.AddCommand(recordsCmd)
	recordsCmd.AddCommand(recordsListCmd, recordsAddCmd, recordsDeleteCmd, recordsReclaimCmd)

	recordsListCmd.Flags().Bool("show-passwords", false, "Print passwords instead of masking them")
	recordsListCmd.Flags().Bool("json", false, "Print records as JSON")

	recordsAddCmd.Flags().String("site", "", "Site or service name")
	recordsAddCmd.Flags().String("username", "", "Account username")
	recordsAddCmd.Flags().String("totp-secret", "", "Base32 two-factor secret")
	recordsAddCmd.Flags().Bool("generate", false, "Generate the password instead of prompting")
	recordsAddCmd.Flags().Int("length", passgen.DefaultLength, "Generated password length")
	recordsAddCmd.MarkFlagRequired("site")
	recordsAddCmd.MarkFlagRequired("username")
}
