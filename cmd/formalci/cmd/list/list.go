// Package list implements `formalci list`: lists registered repositories,
// optionally filtered by platform, or the jobs belonging to one of them.
package list

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/formalci/formalci/cmd/formalci/cmd/internal/client"
)

type flags struct {
	Server   string
	Platform string
	RepoID   string
	Limit    int
}

// MakeCommand returns the `list` command.
func MakeCommand(configPath *string) *cobra.Command {
	f := &flags{}
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered repositories, or jobs for one repository.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(*configPath, f)
		},
	}
	cmd.Flags().StringVar(&f.Server, "server", "", "control API base URL")
	cmd.Flags().StringVar(&f.Platform, "platform", "", "filter repositories by platform")
	cmd.Flags().StringVar(&f.RepoID, "repo-id", "", "list jobs for this repository instead of listing repositories")
	cmd.Flags().IntVar(&f.Limit, "limit", 20, "max jobs to list (only with --repo-id)")
	return cmd
}

func run(configPath string, f *flags) error {
	server := client.ResolveServer(configPath, f.Server)

	if f.RepoID != "" {
		data, err := client.Call(server, "jobs_for_repo", map[string]interface{}{
			"repo_id": f.RepoID,
			"limit":   f.Limit,
		})
		if err != nil {
			return err
		}
		fmt.Println(client.PrettyJSON(data))
		return nil
	}

	var platform interface{}
	if f.Platform != "" {
		platform = f.Platform
	}
	data, err := client.Call(server, "repositories", map[string]interface{}{"platform": platform})
	if err != nil {
		return err
	}
	fmt.Println(client.PrettyJSON(data))
	return nil
}
