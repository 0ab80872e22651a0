package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/MrEthical07/authflow/authapi/authapitest"
	"github.com/spf13/cobra"
)

func newFakeServerCmd(a *app) *cobra.Command {
	var (
		addr     string
		accounts []string
	)

	cmd := &cobra.Command{
		Use:   "fake-server",
		Short: "Run an in-memory authentication service for local testing",
		Long: `fake-server serves POST /auth/login and POST /auth/register with the
same JSON shapes as the real service. Tokens are HS256 signed with the
authapitest default secret.

Accounts can be seeded with --account name:lastname:email:password.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc := authapitest.New(authapitest.WithLogger(a.logger))
			for _, entry := range accounts {
				parts := strings.SplitN(entry, ":", 4)
				if len(parts) != 4 {
					return fmt.Errorf("account %q: want name:lastname:email:password", entry)
				}
				if _, err := svc.AddAccount(parts[0], parts[1], parts[2], parts[3]); err != nil {
					return fmt.Errorf("account %q: %w", parts[2], err)
				}
			}

			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return err
			}
			return serveUntilDone(cmd.Context(), a, ln, svc)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringArrayVar(&accounts, "account", nil, "seed account as name:lastname:email:password (repeatable)")
	return cmd
}

func serveUntilDone(ctx context.Context, a *app, ln net.Listener, h http.Handler) error {
	srv := &http.Server{Handler: h, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	fmt.Fprintf(a.out, "fake auth service listening on http://%s\n", ln.Addr())
	a.logger.Info("fake auth service started", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
