package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Zachdehooge/hazard-map/internal/session"
)

// addListCmd adds a 'list' subcommand that builds the stack and prints it
// without writing any output files
func addListCmd(rootCmd *cobra.Command) {
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Load the datasets and print the layer stack",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			sess := session.New(cfg)
			defer sess.Close()

			snap, err := sess.Build(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to build map: %w", err)
			}
			printSnapshot(cmd.OutOrStdout(), snap)
			return nil
		},
	}

	rootCmd.AddCommand(listCmd)
}

// printSnapshot lists the stack top layer first
func printSnapshot(w io.Writer, snap *session.Snapshot) {
	printSection(w, fmt.Sprintf("Layer stack (%d layers, top first)", len(snap.Stack.Entries)))
	if len(snap.Stack.Entries) == 0 {
		fmt.Fprintln(w, "  No layers loaded.")
	}
	for i := len(snap.Stack.Entries) - 1; i >= 0; i-- {
		e := snap.Stack.Entries[i]
		state := visibleColor.Sprint("visible")
		if !e.Visible {
			state = hiddenColor.Sprint("hidden")
		}
		printLabelValue(w, e.Layer.Name(), fmt.Sprintf("%s, %d features", state, e.Layer.Len()))
	}

	if len(snap.Resolutions) > 0 {
		printSection(w, "Overlap resolution")
		for _, r := range snap.Resolutions {
			if r.Err != nil {
				printWarning(w, fmt.Sprintf("%s: %d of %d points still overlap", r.Layer, r.Unresolved, r.Features))
				continue
			}
			printLabelValue(w, r.Layer, fmt.Sprintf("%d points separated", r.Features))
		}
	}

	failed := snap.FailedLoads()
	if len(failed) > 0 || len(snap.Stack.Warnings) > 0 {
		printSection(w, "Problems")
		for _, r := range failed {
			printFailure(w, fmt.Sprintf("%s: %v", r.Name, r.Err))
		}
		for _, warn := range snap.Stack.Warnings {
			printWarning(w, warn.Err().Error())
		}
	}
}

// addConfigCmd adds a 'config' subcommand that prints the effective configuration
func addConfigCmd(rootCmd *cobra.Command) {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(cfg)
		},
	}

	rootCmd.AddCommand(configCmd)
}
