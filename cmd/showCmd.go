package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/routelab/routelab/api"
	"github.com/routelab/routelab/pkg/topology"
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show a topology file",
	Long:  `Print the routers or links a topology file declares, without touching the container runtime.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("from")
		topo, err := topology.Load(path)
		if err != nil {
			return err
		}

		class := cmd.Flag("class").Value.String()
		switch class {
		case "routers", "nodes":
			showRouters(topo)
		case "links":
			showLinks(topo)
		default:
			return fmt.Errorf("unknown class %q, want routers or links", class)
		}
		return nil
	},
}

func showRouters(topo *api.Topology) {
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ROUTER\tROUTER-ID\tPROTOCOLS\tINTERFACES")
	for _, r := range topo.Routers {
		var protos []string
		if r.OSPF != nil {
			protos = append(protos, "ospf")
		}
		if r.ISIS != nil {
			protos = append(protos, "isis")
		}
		var ifaces []string
		for _, ifc := range r.Interfaces {
			ifaces = append(ifaces, ifc.Name+"="+ifc.Addr)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Name, r.RouterID, strings.Join(protos, ","), strings.Join(ifaces, " "))
	}
	tw.Flush()
}

func showLinks(topo *api.Topology) {
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LINK\tKIND\tA\tB\tIMPAIRMENT")
	for _, l := range topo.Links {
		kind := l.Kind
		if kind == "" {
			kind = api.LinkBroadcast
		}
		var imp string
		if l.Properties.DelayMs > 0 {
			imp = fmt.Sprintf("delay=%dms", l.Properties.DelayMs)
		}
		if l.Properties.LossPct > 0 {
			if imp != "" {
				imp += " "
			}
			imp += fmt.Sprintf("loss=%.1f%%", l.Properties.LossPct)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s/%s\t%s/%s\t%s\n",
			l.Name, kind, l.A.Router, l.A.Interface, l.B.Router, l.B.Interface, imp)
	}
	tw.Flush()
}

func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().StringP("from", "f", "", "Path to the topology file")
	showCmd.Flags().String("class", "routers", "Class of the element to show (routers or links)")
	showCmd.MarkFlagRequired("from")
}
