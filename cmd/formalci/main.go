// Command formalci is the proof-aware CI bot's CLI entry point: a
// spf13/cobra root command with one subcommand per operator action.
package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/formalci/formalci/cmd/formalci/cmd/check"
	"github.com/formalci/formalci/cmd/formalci/cmd/initdb"
	"github.com/formalci/formalci/cmd/formalci/cmd/list"
	"github.com/formalci/formalci/cmd/formalci/cmd/register"
	"github.com/formalci/formalci/cmd/formalci/cmd/serve"
	"github.com/formalci/formalci/cmd/formalci/cmd/status"
	"github.com/formalci/formalci/internal/logutil"
)

var (
	configPath string
	verbose    bool
)

var rootCommand = &cobra.Command{
	Use:   "formalci",
	Short: "formalci watches code-hosting platforms and dispatches formal proofs for verification.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := "info"
		if verbose {
			level = "debug"
		}
		logutil.Init("formalci", level)
	},
}

func run() error {
	rootCommand.PersistentFlags().StringVar(&configPath, "config", "", "path to TOML configuration file")
	rootCommand.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCommand.AddCommand(serve.MakeCommand(&configPath))
	rootCommand.AddCommand(register.MakeCommand(&configPath))
	rootCommand.AddCommand(check.MakeCommand(&configPath))
	rootCommand.AddCommand(status.MakeCommand(&configPath))
	rootCommand.AddCommand(list.MakeCommand(&configPath))
	rootCommand.AddCommand(initdb.MakeCommand(&configPath))

	return rootCommand.Execute()
}

func main() {
	if err := run(); err != nil {
		logrus.WithError(err).Error("formalci: command failed")
		os.Exit(1)
	}
}
