package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"github.com/bookrelay/chat-relay-service/config"
	"go.uber.org/fx"
)

const (
	ServiceName      = "chat-relay-service"
	ServiceNamespace = "bookrelay"
)

var (
	version        = "0.0.0"
	commit         = "hash"
	commitDate     = time.Now().String()
	branch         = "branch"
	buildTimestamp = ""
)

func Run() error {
	app := &cli.App{
		Name:  ServiceName,
		Usage: "Realtime group chat relay for the book catalog platform",
		Commands: []*cli.Command{
			serverCmd(),
			consumerCmd(),
		},
	}

	return app.Run(os.Args)
}

func serverCmd() *cli.Command {
	return &cli.Command{
		Name:    "server",
		Aliases: []string{"s"},
		Usage:   "Run the websocket chat server",
		Flags:   commonFlags(),
		Action: func(c *cli.Context) error {
			cfg, err := config.LoadConfig(c.String("config_file"))
			if err != nil {
				return err
			}
			return runApp(c.Context, NewServerApp(cfg))
		},
	}
}

func consumerCmd() *cli.Command {
	return &cli.Command{
		Name:    "consumer",
		Aliases: []string{"c"},
		Usage:   "Run the catalog event ingestion consumer",
		Flags:   commonFlags(),
		Action: func(c *cli.Context) error {
			cfg, err := config.LoadConfig(c.String("config_file"))
			if err != nil {
				return err
			}
			return runApp(c.Context, NewConsumerApp(cfg))
		},
	}
}

func commonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "config_file",
			Usage: "Path to the configuration file",
		},
	}
}

func runApp(ctx context.Context, app *fx.App) error {
	if err := app.Start(ctx); err != nil {
		return err
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	slog.Info("Shutting down...")
	return app.Stop(context.Background())
}
