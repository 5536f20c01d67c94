package cmd

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmcleod/lockbox/totp"
)

var totpCmd = &cobra.Command{
	Use:   "totp",
	Short: "Two-factor codes",
}

var totpNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Generate a new two-factor secret and its provisioning URI",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		account, _ := cmd.Flags().GetString("account")
		secret, err := totp.GenerateSecret()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Secret: %s\nURI:    %s\n", secret, totp.ProvisioningURI(secret, account, cfg.TOTP.Issuer))
		return nil
	},
}

var totpAttachCmd = &cobra.Command{
	Use:   "attach <id> <secret>",
	Short: "Attach a two-factor secret to a record after verifying a code",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseRecordID(args[0])
		if err != nil {
			return err
		}
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

		code, err := p.line("Code from your authenticator: ")
		if err != nil {
			return err
		}
		if _, err := s.AttachTOTP(cmd.Context(), id, args[1], code); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Two-factor secret attached to record %d.\n", id)
		return nil
	},
}

var totpCodeCmd = &cobra.Command{
	Use:   "code <id>",
	Short: "Print the current code for a record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		secret, err := recordSecret(cmd, args[0])
		if err != nil {
			return err
		}
		code, err := totp.CurrentCode(secret)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (%ds)\n", code.Value, code.SecondsRemaining)
		if copyOut, _ := cmd.Flags().GetBool("copy"); copyOut {
			copySecret(cmd.ErrOrStderr(), code.Value, "code")
		}
		return nil
	},
}

var totpWatchCmd = &cobra.Command{
	Use:   "watch <id>",
	Short: "Print a record's code every second until interrupted",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		secret, err := recordSecret(cmd, args[0])
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		out := cmd.OutOrStdout()
		ticker := totp.NewTicker(secret, time.Second, func(c totp.Code) {
			fmt.Fprintf(out, "\r%s  %2ds", c.Value, c.SecondsRemaining)
		})
		if err := ticker.Start(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		ticker.Stop()
		fmt.Fprintln(out)
		return nil
	},
}

// recordSecret unlocks the vault just long enough to read a record's secret.
func recordSecret(cmd *cobra.Command, arg string) (string, error) {
	id, err := parseRecordID(arg)
	if err != nil {
		return "", err
	}
	v, closeRepo, err := openVault(cmd.Context())
	defer closeRepo()
	if err != nil {
		return "", err
	}
	s, err := unlock(cmd.Context(), newPrompter(cmd), v)
	if err != nil {
		return "", err
	}
	defer s.Lock()

	r, err := s.Record(cmd.Context(), id)
	if err != nil {
		return "", err
	}
	if r.TOTPSecret == "" {
		return "", fmt.Errorf("record %d has no two-factor secret", id)
	}
	return r.TOTPSecret, nil
}

func init() {
	rootCmd.AddCommand(totpCmd)
	totpCmd.AddCommand(totpNewCmd, totpAttachCmd, totpCodeCmd, totpWatchCmd)
	totpNewCmd.Flags().String("account", "", "Account label shown in the authenticator app")
	totpCodeCmd.Flags().BoolP("copy", "c", false, "Also copy the code to the clipboard")
}
