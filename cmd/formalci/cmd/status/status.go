// Package status implements `formalci status`: prints queue stats and
// verifier health from a running server's control API.
package status

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/formalci/formalci/cmd/formalci/cmd/internal/client"
)

type flags struct {
	Server string
}

// MakeCommand returns the `status` command.
func MakeCommand(configPath *string) *cobra.Command {
	f := &flags{}
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print scheduler queue stats and verifier health.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(*configPath, f)
		},
	}
	cmd.Flags().StringVar(&f.Server, "server", "", "control API base URL")
	return cmd
}

func run(configPath string, f *flags) error {
	server := client.ResolveServer(configPath, f.Server)

	stats, err := client.Call(server, "queue_stats", map[string]interface{}{})
	if err != nil {
		return err
	}
	fmt.Println("queue:", client.PrettyJSON(stats))

	health, err := client.Call(server, "verifier_health", map[string]interface{}{})
	if err != nil {
		return err
	}
	fmt.Println("verifier_health:", client.PrettyJSON(health))
	return nil
}
