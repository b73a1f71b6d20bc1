package commands

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/reposage/reposage/internal/app"
	"github.com/reposage/reposage/internal/server"
)

// ServeCommand returns the CLI command that runs the HTTP front end.
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP analysis server",
		Description: "Starts an HTTP server exposing POST /analyze and GET /healthz. " +
			"Requests are rate limited per client address.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "addr",
				Aliases: []string{"a"},
				Usage:   "Listen address (overrides REPOSAGE_SERVER_ADDR)",
			},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}

	cfg := application.Config.Server
	if addr := c.String("addr"); addr != "" {
		cfg.Addr = addr
	}

	srv := server.New(cfg, application.Review, application.Logger)

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	if err := srv.Shutdown(context.Background()); err != nil {
		return err
	}
	return <-errCh
}
