package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	app "evquota/internal/app"
	"evquota/internal/auth"
	"evquota/internal/config"
	"evquota/libs/logging"
)

var Version = "dev"

func main() {
	if err := buildApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildApp() *cli.App {
	cliApp := cli.NewApp()
	cliApp.Name = "ocpp-server"
	cliApp.Usage = "Quota-enforcing OCPP 1.6 central system"
	cliApp.Version = Version
	cliApp.Flags = []cli.Flag{
		&cli.PathFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to the YAML configuration file",
			EnvVars: []string{"CONFIG_FILE"},
		},
		&cli.PathFlag{
			Name:  "env-file",
			Usage: "Load environment variables from a dotenv file before reading configuration",
		},
	}
	cliApp.Action = serveAction
	cliApp.Commands = []*cli.Command{
		{
			Name:      "hash-password",
			Usage:     "Print the bcrypt hash of a charger password for auth.chargers",
			ArgsUsage: "<password>",
			Action: func(cliCtx *cli.Context) error {
				if cliCtx.NArg() != 1 {
					return cli.Exit("exactly one password argument is required", 2)
				}
				hash, err := auth.NewBcryptHasher(0).Hash(cliCtx.Args().First())
				if err != nil {
					return err
				}
				fmt.Fprintln(cliCtx.App.Writer, hash)
				return nil
			},
		},
	}
	return cliApp
}

func serveAction(cliCtx *cli.Context) error {
	if envFile := cliCtx.Path("env-file"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("load env file: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cliCtx.Path("config"))
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger()
	if err != nil {
		return err
	}
	defer logger.Sync() // best-effort flush

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize application", zap.Error(err))
		return err
	}
	defer application.Close()

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("application stopped with error", zap.Error(err))
		return err
	}
	return nil
}
