package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var recoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Set a new master passphrase using the recovery key",
	Long: `Set a new master passphrase using the recovery key.

Records encrypted under the forgotten passphrase are kept aside and can be
merged back with "lockbox records reclaim" if the old passphrase turns up.
A new recovery key replaces the one used here.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p := newPrompter(cmd)
		v, closeRepo, err := openVault(cmd.Context())
		defer closeRepo()
		if err != nil {
			return err
		}

		key, err := p.secret("Recovery key: ")
		if err != nil {
			return err
		}
		rec, err := v.RecoverAccount(cmd.Context(), key)
		if err != nil {
			return err
		}
		pass, err := p.newSecret("New master passphrase: ")
		if err != nil {
			return err
		}
		s, err := v.SetNewMasterPassword(cmd.Context(), rec, pass)
		if err != nil {
			return err
		}
		defer s.Lock()
		if err := confirmRecoveryKey(p, s); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Master passphrase reset.")
		return nil
	},
}

var passwdCmd = &cobra.Command{
	Use:   "passwd",
	Short: "Change the master passphrase",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
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

		pass, err := p.newSecret("New master passphrase: ")
		if err != nil {
			return err
		}
		if err := s.ChangePassphrase(cmd.Context(), pass); err != nil {
			return err
		}
		if err := confirmRecoveryKey(p, s); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Master passphrase changed.")
		return nil
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Erase the vault",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p := newPrompter(cmd)
		ok, err := p.confirm("This permanently erases every record. Continue?")
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		v, closeRepo, err := openVault(cmd.Context())
		defer closeRepo()
		if err != nil {
			return err
		}
		if err := v.Reset(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Vault erased.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(recoverCmd, passwdCmd, resetCmd)
}
