package main

import (
	"context"
	"errors"
	"fmt"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
	"os"
	"os/signal"
	"paygate/config"
	"paygate/internal"
	"paygate/services"
	"strings"
	"syscall"
	"time"
)

const shutdownTimeout = 10 * time.Second

func main() {
	logger := internal.NewLogger("internal", false, nil)

	app := &cli.App{
		Name:  "paygate",
		Usage: "sell downloads through Express Checkout",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "conf",
				Aliases: []string{"c"},
				Value:   "config.yml",
				Usage:   "path to config file",
				EnvVars: []string{"PAYGATE_CONFIG"},
			},
		},
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "start the download gate",
				Action: serve,
			},
			{
				Name:   "check",
				Usage:  "validate the configuration and print the catalog",
				Action: check,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Error("paygate", err)
		os.Exit(1)
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	configPath := c.String("conf")
	internal.NewLogger("internal", false, nil).Info("using config file: " + configPath)
	return config.GetConfig(configPath)
}

func serve(c *cli.Context) error {
	conf, err := loadConfig(c)
	if err != nil {
		return err
	}

	if missing := conf.Missing(); len(missing) > 0 {
		return fmt.Errorf("missing configuration: %s", strings.Join(missing, ", "))
	}

	mongo, err := internal.NewMongoClient(conf)
	if err != nil {
		return err
	}
	var database services.Database
	if mongo != nil {
		database = mongo
	}

	logger := internal.NewLogger("internal", conf.IsDebug, database)

	checkout := internal.NewCheckout(conf)
	checkout.SetLogger(internal.NewLogger("checkout", conf.IsDebug, database))
	checkout.SetDatabase(database)

	catalog, err := internal.GetCatalog(conf.Catalog.Path, conf.Catalog.Currency, internal.NewLogger("catalog", conf.IsDebug, database))
	if err != nil {
		return err
	}
	logger.Info(fmt.Sprintf("catalog loaded: %d resources", catalog.Len()))
	checkout.SetCatalog(catalog)

	provider := internal.NewExpressCheckout(conf)
	provider.SetLogger(internal.NewLogger("provider", conf.IsDebug, database))
	checkout.SetProvider(provider)

	dispatcher := internal.NewFileDispatcher(conf)
	dispatcher.SetLogger(internal.NewLogger("files", conf.IsDebug, database))
	checkout.SetDispatcher(dispatcher)

	server := internal.NewServer(conf)
	server.SetLogger(internal.NewLogger("server", conf.IsDebug, database))
	server.SetCheckout(checkout)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(server.Start)
	group.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := server.Shutdown(shutdownCtx)
		if mongo != nil {
			err = errors.Join(err, mongo.Close(shutdownCtx))
		}
		return err
	})

	return group.Wait()
}

func check(c *cli.Context) error {
	conf, err := loadConfig(c)
	if err != nil {
		return err
	}
	if missing := conf.Missing(); len(missing) > 0 {
		return fmt.Errorf("missing configuration: %s", strings.Join(missing, ", "))
	}

	catalog, err := internal.LoadCatalog(conf.Catalog.Path, conf.Catalog.Currency, internal.NewLogger("catalog", conf.IsDebug, nil))
	if err != nil {
		return err
	}
	out := c.App.Writer
	_, _ = fmt.Fprintf(out, "checkout: %s %s\n", conf.Checkout.Type, conf.CheckoutUrl())
	_, _ = fmt.Fprintf(out, "provider: %s (version %s)\n", conf.Provider.Endpoint, conf.Provider.Version)
	for _, resource := range catalog.Resources() {
		_, _ = fmt.Fprintf(out, "%s\t%s %s\n", resource.Name, resource.Amount(), resource.Currency)
	}
	return nil
}
