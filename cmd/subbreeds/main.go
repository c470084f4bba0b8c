// Command subbreeds looks up dog sub-breeds through a caching dog.ceo client,
// either once from the command line or as an HTTP service.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/illmade-knight/go-dogbreeds/pkg/breeds"
	"github.com/illmade-knight/go-dogbreeds/pkg/config"
	"github.com/illmade-knight/go-dogbreeds/pkg/dogapi"
	"github.com/illmade-knight/go-dogbreeds/pkg/microservice"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"
)

func main() {
	os.Exit(realMain(os.Args, os.Stdout))
}

func realMain(args []string, stdout io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp(stdout).Run(ctx, args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func newApp(stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "subbreeds",
		Usage: "look up dog sub-breeds from dog.ceo",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a YAML config file",
				Sources: cli.EnvVars("SUBBREEDS_CONFIG"),
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "override the configured log level",
			},
			&cli.StringFlag{
				Name:  "base-url",
				Usage: "override the dog api base url",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "lookup",
				Usage:     "print the sub-breeds of each breed",
				ArgsUsage: "<breed>...",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "stats",
						Usage: "print how many upstream calls were made",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runLookup(ctx, cmd, stdout)
				},
			},
			{
				Name:  "serve",
				Usage: "serve lookups over HTTP",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "port",
						Usage: "listen address, e.g. :8080",
					},
				},
				Action: runServe,
			},
		},
	}
}

// setup loads configuration, applies flag overrides and builds the fetcher chain.
func setup(cmd *cli.Command) (*config.Config, zerolog.Logger, *dogapi.Source, *breeds.CachingFetcher, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, zerolog.Nop(), nil, nil, err
	}
	if lvl := cmd.String("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}
	if base := cmd.String("base-url"); base != "" {
		cfg.DogAPI.BaseURL = base
	}
	if port := cmd.String("port"); port != "" {
		cfg.HTTPPort = port
	}
	if err := cfg.Validate(); err != nil {
		return nil, zerolog.Nop(), nil, nil, err
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(cfg.Level()).
		With().Timestamp().Str("service", cfg.ServiceName).Logger()

	source, err := dogapi.NewSource(&cfg.DogAPI, logger)
	if err != nil {
		return nil, logger, nil, nil, err
	}
	caching, err := breeds.NewCachingFetcher(source, logger)
	if err != nil {
		return nil, logger, nil, nil, err
	}
	return cfg, logger, source, caching, nil
}

func runLookup(ctx context.Context, cmd *cli.Command, stdout io.Writer) error {
	names := cmd.Args().Slice()
	if len(names) == 0 {
		return fmt.Errorf("lookup needs at least one breed")
	}

	_, logger, source, caching, err := setup(cmd)
	if err != nil {
		return err
	}
	defer source.Close()

	var failed int
	for _, name := range names {
		subBreeds, err := caching.GetSubBreeds(ctx, name)
		if err != nil {
			failed++
			logger.Error().Err(err).Str("breed", name).Msg("Lookup failed.")
			fmt.Fprintf(stdout, "%s: error: %v\n", name, err)
			continue
		}
		fmt.Fprintf(stdout, "%s: %s\n", name, strings.Join(subBreeds, ", "))
	}
	if cmd.Bool("stats") {
		fmt.Fprintf(stdout, "upstream calls: %d\n", caching.CallsMade())
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d lookups failed", failed, len(names))
	}
	return nil
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	cfg, logger, source, caching, err := setup(cmd)
	if err != nil {
		return err
	}
	defer source.Close()

	server, err := microservice.NewBreedsServer(caching, logger, cfg.HTTPPort)
	if err != nil {
		return err
	}
	if err := server.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	logger.Info().Msg("Shutdown signal received.")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
