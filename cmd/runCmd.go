package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/routelab/routelab/pkg/scenario"
	"github.com/routelab/routelab/pkg/topology"
)

var (
	runPollInterval time.Duration
	runWaitTimeout  time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run <scenario.yaml>",
	Short: "Run a scenario",
	Long: `Run a scenario end to end: converge its topology, apply configuration
changes and faults, and poll routing state until each condition holds or
times out. Exits 0 when every step passes, 1 on an assertion failure and
2 on an infrastructure error.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sc, topo, err := topology.LoadScenario(args[0])
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
		runner, err := scenario.New(scenario.Config{
			Logger:             log,
			Orchestrator:       orch,
			Execer:             rt,
			PollInterval:       runPollInterval,
			DefaultWaitTimeout: runWaitTimeout,
		})
		if err != nil {
			return err
		}

		res, err := runner.Run(ctx, sc, topo)
		if err != nil {
			return err
		}
		printScenarioResult(res)
		if code := res.ExitCode(); code != 0 {
			return exitErr(code)
		}
		return nil
	},
}

func printScenarioResult(res *scenario.Result) {
	for _, sr := range res.Steps {
		line := fmt.Sprintf("[%s] step %d: %s", sr.Status, sr.Index, sr.Description)
		if sr.Err != nil {
			line += " - " + sr.Err.Error()
		} else if sr.Elapsed > 0 {
			line += fmt.Sprintf(" (%s)", sr.Elapsed.Round(timePrecision))
		}
		fmt.Println(line)
	}
	if res.InfraErr != nil {
		fmt.Printf("scenario %s aborted: %v\n", res.Scenario, res.InfraErr)
		return
	}
	if res.Passed() {
		fmt.Printf("scenario %s passed (%d steps)\n", res.Scenario, len(res.Steps))
	} else {
		fmt.Printf("scenario %s failed: %d of %d steps\n", res.Scenario, len(res.Failures()), len(res.Steps))
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().DurationVar(&runPollInterval, "poll-interval", 0, "Interval between routing state polls (default 2s)")
	runCmd.Flags().DurationVar(&runWaitTimeout, "wait-timeout", 0, "Default timeout for wait steps (default 60s)")
}
