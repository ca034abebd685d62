package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/MikeMC777/autoparts-payments/internal/config"
)

var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type globals struct {
	dsn string
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:           "paymentsctl",
		Short:         "Operator tool for the payment service: schema migrations and manual reconciliation",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.dsn, "dsn", "", "postgres DSN (defaults to POSTGRES_DSN)")

	root.AddCommand(migrateCmd(g))
	root.AddCommand(reconcileCmd(g))
	root.AddCommand(orderCmd(g))
	return root
}

// resolve fills unset flags from the service configuration.
func (g *globals) resolve() config.Config {
	cfg := config.Load()
	if g.dsn == "" {
		g.dsn = cfg.PostgresDSN
	}
	return cfg
}
