// Package initdb implements `formalci init-db`: verifies connectivity to
// the configured store backend before the server starts serving
// traffic. For the memory backend this is a no-op (there is nothing to
// dial); for Redis it confirms the connection pool can reach the
// configured address.
package initdb

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/formalci/formalci/internal/config"
	"github.com/formalci/formalci/internal/store"
)

// MakeCommand returns the `init-db` command.
func MakeCommand(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init-db",
		Short: "Verify connectivity to the configured store backend.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(*configPath)
		},
	}
	return cmd
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Store.Backend == "memory" {
		fmt.Println("init-db: memory backend requires no setup")
		return nil
	}

	st := store.NewRedis(cfg.Store.RedisURL)
	if err := st.HealthCheck(context.Background()); err != nil {
		return fmt.Errorf("init-db: store unreachable: %w", err)
	}
	fmt.Println("init-db: store reachable")
	return nil
}
