// Package register implements `formalci register`: registers a
// repository against a running server's control API.
package register

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/formalci/formalci/cmd/formalci/cmd/internal/client"
)

type flags struct {
	Server         string
	Platform       string
	Owner          string
	Name           string
	Provers        string
	CheckOnPush    bool
	CheckOnPR      bool
	AutoComment    bool
	Mode           string
}

// MakeCommand returns the `register` command.
func MakeCommand(configPath *string) *cobra.Command {
	f := &flags{}
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a repository for proof checking.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(*configPath, f)
		},
	}
	cmd.Flags().StringVar(&f.Server, "server", "", "control API base URL (default derived from --config, else http://localhost:8080)")
	cmd.Flags().StringVar(&f.Platform, "platform", "", "github, gitlab, bitbucket, or codeberg")
	cmd.Flags().StringVar(&f.Owner, "owner", "", "repository owner/namespace")
	cmd.Flags().StringVar(&f.Name, "name", "", "repository name")
	cmd.Flags().StringVar(&f.Provers, "provers", "", "comma-separated list of provers to enable")
	cmd.Flags().BoolVar(&f.CheckOnPush, "check-on-push", true, "check proofs on push events")
	cmd.Flags().BoolVar(&f.CheckOnPR, "check-on-pr", true, "check proofs on pull/merge request events")
	cmd.Flags().BoolVar(&f.AutoComment, "auto-comment", true, "post comments with verification results")
	cmd.Flags().StringVar(&f.Mode, "mode", "verifier", "verifier, advisor, consultant, or regulator")
	return cmd
}

func run(configPath string, f *flags) error {
	server := client.ResolveServer(configPath, f.Server)

	provers := []string{}
	for _, p := range strings.Split(f.Provers, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			provers = append(provers, p)
		}
	}

	data, err := client.Call(server, "register_repository", map[string]interface{}{
		"platform":        f.Platform,
		"owner":           f.Owner,
		"name":            f.Name,
		"enabled_provers": provers,
		"check_on_push":   f.CheckOnPush,
		"check_on_pr":     f.CheckOnPR,
		"auto_comment":    f.AutoComment,
		"mode":            f.Mode,
	})
	if err != nil {
		return err
	}
	fmt.Println(client.PrettyJSON(data))
	return nil
}
