package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var teardownCmd = &cobra.Command{
	Use:   "teardown [topology-name]",
	Short: "Remove a topology",
	Long:  `Remove every managed container, veth and bridge segment belonging to a topology. Already-absent resources are skipped.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("from")
		name, _, err := resolveTopology(args, path)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		rt, err := newRuntime(ctx)
		if err != nil {
			return err
		}
		orch, err := newOrchestrator(rt, false)
		if err != nil {
			return err
		}
		if err := orch.Teardown(ctx, name); err != nil {
			return err
		}
		fmt.Printf("topology %s removed\n", name)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(teardownCmd)
	teardownCmd.Flags().StringP("from", "f", "", "Path to the topology file")
}
