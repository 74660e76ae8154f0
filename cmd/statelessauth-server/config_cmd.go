package main

import (
	"encoding/json"
	"fmt"

	"github.com/MrEthical07/statelessauth"
	"github.com/MrEthical07/statelessauth/store/memstore"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the effective configuration",
}

var configLintCmd = &cobra.Command{
	Use:   "lint",
	Short: "Report risky settings; fails on HIGH findings",
	RunE: func(cmd *cobra.Command, args []string) error {
		ecfg, err := cfg.engineConfig()
		if err != nil {
			return err
		}

		res := ecfg.Lint()
		out := cmd.OutOrStdout()
		for _, w := range res {
			fmt.Fprintf(out, "%-5s %-26s %s\n", w.Severity, w.Code, w.Message)
		}
		return res.AsError(statelessauth.LintHigh)
	},
}

var configReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the security report of the configured engine as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		ecfg, err := cfg.engineConfig()
		if err != nil {
			return err
		}
		// The report does not depend on the store.
		engine, err := statelessauth.New().
			WithConfig(ecfg).
			WithPrincipalStore(memstore.New()).
			Build()
		if err != nil {
			return err
		}
		defer engine.Close()

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(engine.SecurityReport())
	},
}

func init() {
	configCmd.AddCommand(configLintCmd)
	configCmd.AddCommand(configReportCmd)
	rootCmd.AddCommand(configCmd)
}
