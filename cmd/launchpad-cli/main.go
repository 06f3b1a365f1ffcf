// Launchpad CLI — инструмент командной строки для управления
// конфигурациями кластеров, launch-функциями и runs через HTTP API.
//
// Использование:
//
//	launchpad [--api-url URL] [--format table|json|yaml] <command> <subcommand> [flags]
//
// Команды:
//
//	config  Конфигурации кластеров
//	launch  Launch-функции
//	run     Управление runs
//	token   Завершение асинхронных шагов
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/Launchpad/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var format string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "launchpad",
		Short:         "Launchpad CLI — cluster launch automation tool",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultURL := os.Getenv("LAUNCHPAD_API_URL")
	if defaultURL == "" {
		defaultURL = "http://localhost:8080"
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", defaultURL, "API server URL (env LAUNCHPAD_API_URL)")
	rootCmd.PersistentFlags().StringVar(&format, "format", "table", "Output format: table, json, yaml")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Shorthand for --format json")

	var outputFormat cli.Format
	rootCmd.PersistentPreRunE = func(*cobra.Command, []string) error {
		if jsonOutput {
			format = string(cli.FormatJSON)
		}
		var err error
		outputFormat, err = cli.ParseFormat(format)
		return err
	}

	clientFn := func() *cli.Client { return cli.NewClient(apiURL) }
	outputFn := func() *cli.Output { return cli.NewOutput(outputFormat) }

	rootCmd.AddCommand(
		cli.NewConfigCmd(clientFn, outputFn),
		cli.NewLaunchCmd(clientFn, outputFn),
		cli.NewRunCmd(clientFn, outputFn),
		cli.NewTokenCmd(clientFn, outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
