package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewRunCmd создаёт группу команд для управления runs.
func NewRunCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Manage runs",
	}

	cmd.AddCommand(
		newRunListCmd(clientFn, outputFn),
		newRunStartCmd(clientFn, outputFn),
		newRunShowCmd(clientFn, outputFn),
		newRunCancelCmd(clientFn, outputFn),
		newRunNodesCmd(clientFn, outputFn),
	)

	return cmd
}

var runHeaders = []string{"ID", "FUNCTION", "STATUS", "TERMINAL", "ERROR", "CREATED"}

func runRow(r RunResponse) []string {
	return []string{r.ID, r.Namespace + "/" + r.LaunchFunction, r.Status, r.Terminal, r.ErrorKind(), r.CreatedAt}
}

func newRunListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var opts ListRunsOpts

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			runs, err := client.ListRuns(opts)
			if err != nil {
				return err
			}

			rows := make([][]string, len(runs))
			for i, r := range runs {
				rows[i] = runRow(r)
			}

			out.Print(runHeaders, rows, runs)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Namespace, "namespace", "", "Filter by namespace")
	cmd.Flags().StringVar(&opts.LaunchFunction, "function", "", "Filter by launch function")
	cmd.Flags().StringVar(&opts.Status, "status", "", "Filter by status (PENDING, RUNNING, SUCCEEDED, FAILED, CANCELLED)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "Maximum number of results")

	return cmd
}

func newRunStartCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var inputs []string
	var overrides []string
	var inputFile string
	var idempotencyKey string

	cmd := &cobra.Command{
		Use:   "start [NAMESPACE/]FUNCTION",
		Short: "Start a launch function",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			namespace, name, err := splitRef(args[0])
			if err != nil {
				return err
			}

			req := StartRunRequest{IdempotencyKey: idempotencyKey}
			if inputFile != "" {
				if req.Input, err = readDocument(inputFile, cmd.InOrStdin()); err != nil {
					return err
				}
			}
			values, err := parseAssignments(inputs)
			if err != nil {
				return err
			}
			req.Input = mergeMaps(req.Input, values)

			overrideValues, err := parseAssignments(overrides)
			if err != nil {
				return err
			}
			if len(overrideValues) > 0 {
				req.Input = withOverrides(req.Input, overrideValues)
			}

			run, err := clientFn().StartRun(namespace, name, req)
			if err != nil {
				return err
			}

			out := outputFn()
			out.Success(fmt.Sprintf("Run started: %s", run.ID))
			out.Print(runHeaders, [][]string{runRow(*run)}, run)
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&inputs, "input", nil, "Input value as KEY=VALUE (repeatable)")
	cmd.Flags().StringArrayVar(&overrides, "override", nil, "Cluster configuration override as NAME=VALUE (repeatable)")
	cmd.Flags().StringVar(&inputFile, "input-file", "", "YAML/JSON file with run input")
	cmd.Flags().StringVar(&idempotencyKey, "idempotency-key", "", "Return the existing run for a repeated key")

	return cmd
}

// withOverrides добавляет переопределения в ClusterConfigurationOverrides входа run.
func withOverrides(input, overrides map[string]any) map[string]any {
	if input == nil {
		input = make(map[string]any)
	}
	existing, _ := input["ClusterConfigurationOverrides"].(map[string]any)
	input["ClusterConfigurationOverrides"] = mergeMaps(existing, overrides)
	return input
}

func newRunShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show run details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			run, err := clientFn().GetRun(args[0])
			if err != nil {
				return err
			}

			outputFn().Print(runHeaders, [][]string{runRow(*run)}, run)
			return nil
		},
	}
}

func newRunCancelCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "cancel ID",
		Short: "Cancel a pending or running run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			run, err := clientFn().CancelRun(args[0], reason)
			if err != nil {
				return err
			}

			if run.Status == "CANCELLED" {
				outputFn().Success(fmt.Sprintf("Run cancelled: %s", run.ID))
			} else {
				outputFn().Success(fmt.Sprintf("Cancellation requested: %s", run.ID))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "Cancellation reason")

	return cmd
}

func newRunNodesCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "nodes RUN_ID",
		Short: "List node executions of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			nodes, err := clientFn().ListNodes(args[0])
			if err != nil {
				return err
			}

			headers := []string{"NODE", "KIND", "BRANCH", "STATUS", "DURATION_MS", "ERROR"}
			rows := make([][]string, len(nodes))
			for i, n := range nodes {
				branch := ""
				if n.Branch != nil {
					branch = strconv.Itoa(*n.Branch)
				}
				errKind, _ := n.Error["Error"].(string)
				rows[i] = []string{n.NodeID, n.Kind, branch, n.Status, strconv.FormatInt(n.DurationMs, 10), errKind}
			}

			outputFn().Print(headers, rows, nodes)
			return nil
		},
	}
}
