package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/routelab/routelab/pkg/neighbor"
)

var statusNeighbors bool

var statusCmd = &cobra.Command{
	Use:   "status [topology-name]",
	Short: "Show running topology state",
	Long: `List the managed containers of a topology and, with --neighbors, each
router's protocol adjacencies. Containers are found by name alone; the
adjacency view needs the declared protocols, so --neighbors requires the
topology file.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("from")
		name, topo, err := resolveTopology(args, path)
		if err != nil {
			return err
		}
		if statusNeighbors && topo == nil {
			return fmt.Errorf("--neighbors needs the declared protocols: pass the topology file with --from")
		}

		ctx := cmd.Context()
		rt, err := newRuntime(ctx)
		if err != nil {
			return err
		}
		handles, err := rt.ListRouters(ctx, name)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ROUTER\tCONTAINER\tRUNNING\tPID")
		for _, h := range handles {
			fmt.Fprintf(tw, "%s\t%s\t%t\t%d\n", h.Router, h.Name, h.Running, h.Pid)
		}
		tw.Flush()

		if !statusNeighbors {
			return nil
		}
		coll, err := neighbor.NewCollector(neighbor.CollectorConfig{
			Logger:   log,
			Execer:   rt,
			Topology: topo,
		})
		if err != nil {
			return err
		}

		fmt.Println()
		tw = tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ROUTER\tPROTO\tPEER\tIFACE\tSTATE")
		for _, h := range handles {
			if !h.Running {
				continue
			}
			snap, err := coll.Snapshot(ctx, h.Router)
			if err != nil {
				log.Warn("snapshot failed", "router", h.Router, "error", err)
				continue
			}
			for _, adj := range snap.Adjacencies {
				state := adj.State
				if adj.Role != "" {
					state += "/" + adj.Role
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", adj.Router, adj.Protocol, adj.PeerID, adj.Iface, state)
			}
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().StringP("from", "f", "", "Path to the topology file")
	statusCmd.Flags().BoolVar(&statusNeighbors, "neighbors", false, "Also query protocol adjacencies from each router")
}
