package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/Black-And-White-Club/pubsub-bridge/app"
	"github.com/Black-And-White-Club/pubsub-bridge/config"
	"github.com/urfave/cli/v2"
)

func main() {
	cliApp := &cli.App{
		Name:  "pubsub-bridge",
		Usage: "relay a pub/sub subscription into an in-process message pipeline",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Value:   "config.yaml",
				Usage:   "Path to the configuration file",
				EnvVars: []string{"BRIDGE_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "ack-mode",
				Usage: "Override the acknowledgement mode (auto|manual)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Run the bridge until interrupted",
				Action: func(c *cli.Context) error {
					cfg, err := loadConfig(c)
					if err != nil {
						return err
					}
					application, err := app.NewApp(c.Context, cfg)
					if err != nil {
						return err
					}
					return application.Run(c.Context)
				},
			},
			{
				Name:  "check-config",
				Usage: "Validate the configuration and exit",
				Action: func(c *cli.Context) error {
					cfg, err := loadConfig(c)
					if err != nil {
						return err
					}
					if err := cfg.Validate(); err != nil {
						return fmt.Errorf("invalid configuration: %w", err)
					}
					mode, _ := cfg.AckMode()
					fmt.Fprintf(c.App.Writer, "configuration ok: %s via %s, ack mode %s, downstream %s\n",
						cfg.SubscriptionName(), cfg.Bridge.Provider, mode, cfg.Downstream.Kind)
					return nil
				},
			},
		},
	}

	if err := cliApp.RunContext(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if mode := c.String("ack-mode"); mode != "" {
		cfg.Bridge.AckMode = mode
	}
	return cfg, nil
}
