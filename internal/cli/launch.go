package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewLaunchCmd создаёт группу команд для управления launch-функциями.
func NewLaunchCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "launch",
		Short: "Manage launch functions",
	}

	cmd.AddCommand(
		newLaunchListCmd(clientFn, outputFn),
		newLaunchShowCmd(clientFn, outputFn),
		newLaunchApplyCmd(clientFn, outputFn),
		newLaunchDeleteCmd(clientFn, outputFn),
	)

	return cmd
}

func newLaunchListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var namespace string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List launch functions",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			fns, err := client.ListLaunchFunctions(namespace)
			if err != nil {
				return err
			}

			headers := []string{"NAMESPACE", "NAME", "KIND", "DESCRIPTION", "UPDATED"}
			rows := make([][]string, len(fns))
			for i, f := range fns {
				rows[i] = []string{f.Namespace, f.Name, f.Kind(), f.Description, f.UpdatedAt}
			}

			out.Print(headers, rows, fns)
			return nil
		},
	}

	cmd.Flags().StringVar(&namespace, "namespace", "", "Filter by namespace")

	return cmd
}

func newLaunchShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show [NAMESPACE/]NAME",
		Short: "Show a launch function",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			namespace, name, err := splitRef(args[0])
			if err != nil {
				return err
			}

			fn, err := clientFn().GetLaunchFunction(namespace, name)
			if err != nil {
				return err
			}

			outputFn().Document(fn)
			return nil
		},
	}
}

func newLaunchApplyCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "apply -f FILE",
		Short: "Create or replace launch functions from a YAML file",
		Long: `Create or replace launch functions. Every YAML document has the form:

  namespace: analytics
  name: start-etl
  description: start the nightly etl cluster
  spec:
    kind: launch-cluster
    configuration: etl
    start_timeout_sec: 3600`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			docs, err := readManifests(file, cmd.InOrStdin())
			if err != nil {
				return err
			}

			var applied []LaunchFunctionResponse
			for _, doc := range docs {
				namespace, name := stringField(doc, "namespace"), stringField(doc, "name")
				if name == "" {
					return fmt.Errorf("launch function document without name")
				}
				if namespace == "" {
					namespace = defaultNamespace
				}

				body := map[string]any{
					"description": stringField(doc, "description"),
					"spec":        doc["spec"],
				}
				fn, err := client.PutLaunchFunction(namespace, name, body)
				if err != nil {
					return fmt.Errorf("apply %s/%s: %w", namespace, name, err)
				}
				out.Success(fmt.Sprintf("Launch function applied: %s/%s", fn.Namespace, fn.Name))
				applied = append(applied, *fn)
			}

			rows := make([][]string, len(applied))
			for i, f := range applied {
				rows[i] = []string{f.Namespace, f.Name, f.Kind(), f.UpdatedAt}
			}
			out.Print([]string{"NAMESPACE", "NAME", "KIND", "UPDATED"}, rows, applied)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Path to YAML file, - for stdin (required)")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func newLaunchDeleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "delete [NAMESPACE/]NAME",
		Short: "Delete a launch function",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			namespace, name, err := splitRef(args[0])
			if err != nil {
				return err
			}
			if err := clientFn().DeleteLaunchFunction(namespace, name); err != nil {
				return err
			}
			outputFn().Success(fmt.Sprintf("Launch function deleted: %s/%s", namespace, name))
			return nil
		},
	}
}
