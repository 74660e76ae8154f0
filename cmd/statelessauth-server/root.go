package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	v       = newViper()
	cfg     *serverConfig
)

var rootCmd = &cobra.Command{
	Use:   "statelessauth-server",
	Short: "Stateless JWT authentication server",
	Long: `statelessauth-server exposes register, login, logout, refresh and me
endpoints under /auth, backed by an in-memory, PostgreSQL or Redis
principal store.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := v.BindPFlags(cmd.Flags()); err != nil {
			return fmt.Errorf("bind flags: %w", err)
		}
		loaded, err := loadConfig(v, cfgFile)
		if err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML, JSON or TOML config file")
	rootCmd.PersistentFlags().String("store.driver", "", "principal store: memory, postgres or redis")
	rootCmd.PersistentFlags().String("log.level", "", "log level (debug, info, warn, error)")
}
