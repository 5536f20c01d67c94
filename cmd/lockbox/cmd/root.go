package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/jmcleod/lockbox/internal/config"
)

// Version is set at build time with -ldflags "-X .../cmd.Version=...".
var Version = "dev"

var (
	configFile string
	cfg        config.Config
)

var rootCmd = &cobra.Command{
	Use:   "lockbox",
	Short: "Lockbox is a local encrypted credential vault",
	Long: `A single-user vault for site credentials and two-factor secrets,
encrypted at rest under a master passphrase with a recovery key fallback.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(cmd, configFile)
		if err != nil {
			return err
		}
		logger, err := config.NewLogger(c.Log, os.Stderr)
		if err != nil {
			return err
		}
		slog.SetDefault(logger)
		cfg = c
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// addStorageFlags registers the flags that select where the vault lives.
func addStorageFlags(fs *pflag.FlagSet) {
	fs.String("data-dir", "", "Directory for vault data")
	fs.String("backend", "", "Storage backend: memory, bbolt, sqlite or postgres")
	fs.String("dsn", "", "Storage file path or postgres connection string")
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "Config file (default searches user, system and working directories)")
	pf.String("log-level", "", "Log level: debug, info, warn or error")
	pf.String("log-format", "", "Log format: text or json")
	addStorageFlags(pf)
}
