package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewConfigCmd создаёт группу команд для управления конфигурациями кластеров.
func NewConfigCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage cluster configurations",
	}

	cmd.AddCommand(
		newConfigListCmd(clientFn, outputFn),
		newConfigShowCmd(clientFn, outputFn),
		newConfigApplyCmd(clientFn, outputFn),
		newConfigResolveCmd(clientFn, outputFn),
		newConfigDeleteCmd(clientFn, outputFn),
	)

	return cmd
}

func newConfigListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var namespace string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cluster configurations",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			configs, err := client.ListConfigurations(namespace)
			if err != nil {
				return err
			}

			headers := []string{"NAMESPACE", "NAME", "DESCRIPTION", "UPDATED"}
			rows := make([][]string, len(configs))
			for i, c := range configs {
				rows[i] = []string{c.Namespace, c.Name, c.Description, c.UpdatedAt}
			}

			out.Print(headers, rows, configs)
			return nil
		},
	}

	cmd.Flags().StringVar(&namespace, "namespace", "", "Filter by namespace")

	return cmd
}

func newConfigShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show [NAMESPACE/]NAME",
		Short: "Show a stored configuration document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			namespace, name, err := splitRef(args[0])
			if err != nil {
				return err
			}

			cfg, err := clientFn().GetConfiguration(namespace, name)
			if err != nil {
				return err
			}

			// Документ выводится всегда в JSON: в таблицу он не помещается.
			outputFn().Document(cfg)
			return nil
		},
	}
}

func newConfigApplyCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var file string
	var record bool

	cmd := &cobra.Command{
		Use:   "apply -f FILE",
		Short: "Create or replace configurations from a YAML file",
		Long: `Create or replace cluster configurations.

By default every YAML document is a declarative definition (name, namespace,
profile, instance_groups, autoscaling, ...) built by the server. With --record
documents are stored configuration records (ConfigurationName, Namespace,
ClusterConfiguration, OverrideInterfaces, ...).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			docs, err := readManifests(file, cmd.InOrStdin())
			if err != nil {
				return err
			}

			var applied []ConfigurationResponse
			for _, doc := range docs {
				namespace, name, body, err := configurationBody(doc, record)
				if err != nil {
					return err
				}
				cfg, err := client.PutConfiguration(namespace, name, body)
				if err != nil {
					return fmt.Errorf("apply %s/%s: %w", namespace, name, err)
				}
				out.Success(fmt.Sprintf("Configuration applied: %s/%s", cfg.Namespace, cfg.Name))
				applied = append(applied, *cfg)
			}

			rows := make([][]string, len(applied))
			for i, c := range applied {
				rows[i] = []string{c.Namespace, c.Name, c.UpdatedAt}
			}
			out.Print([]string{"NAMESPACE", "NAME", "UPDATED"}, rows, applied)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Path to YAML file, - for stdin (required)")
	cmd.Flags().BoolVar(&record, "record", false, "Documents are stored configuration records")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

// configurationBody строит тело запроса PUT /configurations из документа.
func configurationBody(doc map[string]any, record bool) (namespace, name string, body map[string]any, err error) {
	if record {
		namespace, name = stringField(doc, "Namespace"), stringField(doc, "ConfigurationName")
		body = map[string]any{"record": doc}
	} else {
		namespace, name = stringField(doc, "namespace"), stringField(doc, "name")
		body = map[string]any{"definition": doc}
		if d := stringField(doc, "description"); d != "" {
			body["description"] = d
		}
	}
	if name == "" {
		return "", "", nil, fmt.Errorf("configuration document without name")
	}
	if namespace == "" {
		namespace = defaultNamespace
	}
	return namespace, name, body, nil
}

func newConfigResolveCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var overrides []string
	var overridesFile string

	cmd := &cobra.Command{
		Use:   "resolve [NAMESPACE/]NAME",
		Short: "Apply overrides and print the resulting cluster configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			namespace, name, err := splitRef(args[0])
			if err != nil {
				return err
			}

			var values map[string]any
			if overridesFile != "" {
				if values, err = readDocument(overridesFile, cmd.InOrStdin()); err != nil {
					return err
				}
			}
			flagValues, err := parseAssignments(overrides)
			if err != nil {
				return err
			}
			values = mergeMaps(values, flagValues)

			resolved, err := clientFn().ResolveConfiguration(namespace, name, values)
			if err != nil {
				return err
			}

			outputFn().Document(resolved)
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&overrides, "override", nil, "Override as NAME=VALUE (repeatable)")
	cmd.Flags().StringVar(&overridesFile, "overrides-file", "", "YAML/JSON file with overrides")

	return cmd
}

func newConfigDeleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "delete [NAMESPACE/]NAME",
		Short: "Delete a configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			namespace, name, err := splitRef(args[0])
			if err != nil {
				return err
			}
			if err := clientFn().DeleteConfiguration(namespace, name); err != nil {
				return err
			}
			outputFn().Success(fmt.Sprintf("Configuration deleted: %s/%s", namespace, name))
			return nil
		},
	}
}
