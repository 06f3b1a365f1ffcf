package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewTokenCmd создаёт группу команд для завершения асинхронных шагов.
func NewTokenCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Complete asynchronous steps by correlation token",
	}

	cmd.AddCommand(
		newTokenSuccessCmd(clientFn, outputFn),
		newTokenFailureCmd(clientFn, outputFn),
	)

	return cmd
}

func newTokenSuccessCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var values []string
	var outputFile string

	cmd := &cobra.Command{
		Use:   "success TOKEN",
		Short: "Report successful completion of a step",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var output map[string]any
			var err error
			if outputFile != "" {
				if output, err = readDocument(outputFile, cmd.InOrStdin()); err != nil {
					return err
				}
			}
			flagValues, err := parseAssignments(values)
			if err != nil {
				return err
			}
			output = mergeMaps(output, flagValues)

			if err := clientFn().CompleteToken(args[0], output); err != nil {
				return err
			}
			outputFn().Success(fmt.Sprintf("Completion accepted: %s", args[0]))
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&values, "output", nil, "Step output value as KEY=VALUE (repeatable)")
	cmd.Flags().StringVar(&outputFile, "output-file", "", "YAML/JSON file with step output")

	return cmd
}

func newTokenFailureCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var errorKind string
	var cause string

	cmd := &cobra.Command{
		Use:   "failure TOKEN",
		Short: "Report failure of a step",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := clientFn().FailToken(args[0], errorKind, cause); err != nil {
				return err
			}
			outputFn().Success(fmt.Sprintf("Failure accepted: %s", args[0]))
			return nil
		},
	}

	cmd.Flags().StringVar(&errorKind, "error", "", "Error kind, e.g. ClusterStartFailed (required)")
	cmd.Flags().StringVar(&cause, "cause", "", "Error description")
	_ = cmd.MarkFlagRequired("error")

	return cmd
}
