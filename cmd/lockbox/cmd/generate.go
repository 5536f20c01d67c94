package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmcleod/lockbox/passgen"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a random password",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		length, _ := cmd.Flags().GetInt("length")
		noLower, _ := cmd.Flags().GetBool("no-lowercase")
		noUpper, _ := cmd.Flags().GetBool("no-uppercase")
		noNumbers, _ := cmd.Flags().GetBool("no-numbers")
		noSymbols, _ := cmd.Flags().GetBool("no-symbols")
		copyOut, _ := cmd.Flags().GetBool("copy")

		pw, err := passgen.Generate(length, passgen.Options{
			Lowercase: !noLower,
			Uppercase: !noUpper,
			Numbers:   !noNumbers,
			Symbols:   !noSymbols,
		})
		if err != nil {
			return err
		}
		score := passgen.Strength(pw)
		fmt.Fprintln(cmd.OutOrStdout(), pw)
		fmt.Fprintf(cmd.ErrOrStderr(), "strength: %s (%d/5)\n", passgen.Label(score), score)
		if copyOut {
			copySecret(cmd.ErrOrStderr(), pw, "password")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(generateCmd)
	f := generateCmd.Flags()
	f.IntP("length", "l", passgen.DefaultLength, "Password length")
	f.Bool("no-lowercase", false, "Exclude lowercase letters")
	f.Bool("no-uppercase", false, "Exclude uppercase letters")
	f.Bool("no-numbers", false, "Exclude digits")
	f.Bool("no-symbols", false, "Exclude symbols")
	f.BoolP("copy", "c", false, "Also copy the password to the clipboard")
}
