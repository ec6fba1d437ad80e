// Package check implements `formalci check`: manually triggers proof
// verification for a repository via the control API's trigger_check
// mutation, bypassing the webhook ingress.
package check

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/formalci/formalci/cmd/formalci/cmd/internal/client"
)

type flags struct {
	Server  string
	RepoID  string
	Commit  string
	Provers string
}

// MakeCommand returns the `check` command.
func MakeCommand(configPath *string) *cobra.Command {
	f := &flags{}
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Manually trigger a proof check for a registered repository.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(*configPath, f)
		},
	}
	cmd.Flags().StringVar(&f.Server, "server", "", "control API base URL")
	cmd.Flags().StringVar(&f.RepoID, "repo-id", "", "repository surrogate id")
	cmd.Flags().StringVar(&f.Commit, "commit", "", "commit sha to check (default: HEAD)")
	cmd.Flags().StringVar(&f.Provers, "provers", "", "comma-separated provers to check (default: repo's enabled_provers)")
	return cmd
}

func run(configPath string, f *flags) error {
	if f.RepoID == "" {
		return fmt.Errorf("check: --repo-id is required")
	}
	server := client.ResolveServer(configPath, f.Server)

	var provers []string
	for _, p := range strings.Split(f.Provers, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			provers = append(provers, p)
		}
	}

	data, err := client.Call(server, "trigger_check", map[string]interface{}{
		"repo_id": f.RepoID,
		"commit":  f.Commit,
		"provers": provers,
	})
	if err != nil {
		return err
	}
	fmt.Println(client.PrettyJSON(data))
	return nil
}
