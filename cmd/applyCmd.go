package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/routelab/routelab/pkg/topology"
)

var applyPrune bool

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply a topology",
	Long:  `Reconcile the running containers and links against a topology file. Safe to re-run; only drifted routers are touched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("from")
		topo, err := topology.Load(path)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		rt, err := newRuntime(ctx)
		if err != nil {
			return err
		}
		orch, err := newOrchestrator(rt, applyPrune)
		if err != nil {
			return err
		}

		res, err := orch.Reconcile(ctx, topo)
		if err != nil {
			return err
		}
		fmt.Printf("topology %s: %d created, %d reconfigured, %d unchanged, %d removed in %s\n",
			topo.Name, len(res.Created), len(res.Reconfigured), len(res.Unchanged), len(res.Removed), res.Duration.Round(timePrecision))
		for _, f := range res.Failures {
			fmt.Printf("  FAILED %s\n", f)
		}
		if !res.OK() {
			return exitErr(2)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(applyCmd)
	applyCmd.Flags().StringP("from", "f", "", "Path to the topology file")
	applyCmd.Flags().BoolVar(&applyPrune, "prune", false, "Remove managed containers not named by the topology")
	applyCmd.MarkFlagRequired("from")
}
