package main

import (
	"context"
	"fmt"

	"github.com/Pedro-99/taqa-backend/internal/config"
	"github.com/Pedro-99/taqa-backend/internal/db"
	"github.com/Pedro-99/taqa-backend/internal/ingestion"
	"github.com/Pedro-99/taqa-backend/internal/normalizer"
	"github.com/Pedro-99/taqa-backend/internal/oracle"
	"github.com/Pedro-99/taqa-backend/internal/repository"
	"github.com/Pedro-99/taqa-backend/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

type cli struct {
	configPath string
	cfg        config.Config
	log        logger.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:          "taqa-backend",
		Short:        "Maintenance anomaly ingestion service",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(c.configPath)
			if err != nil {
				return err
			}
			c.cfg = cfg
			logger.Init(cfg.Log.Logger())
			c.log = logger.GetDefault()
			cmd.SetContext(logger.ContextWithLogger(cmd.Context(), c.log))
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.serve(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", ".", "directory containing config.yaml")

	root.AddCommand(
		c.serveCmd(),
		c.migrateCmd(),
		c.importCmd(),
		c.syncOracleCmd(),
	)
	return root
}

// app is the wired service graph.
type app struct {
	conn    *db.Connection
	service *ingestion.Service
	syncer  *oracle.Syncer
}

func (c *cli) newApp(ctx context.Context, reg prometheus.Registerer) (*app, error) {
	if c.cfg.Migrations.AutoRun {
		if err := db.RunMigrations(ctx, c.cfg.Database); err != nil {
			return nil, err
		}
	}

	conn, err := db.Shared(ctx, c.cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	opts := []ingestion.Option{ingestion.WithOracleSource(oracle.NewSource(c.cfg.Oracle))}
	if reg != nil {
		opts = append(opts, ingestion.WithMetrics(ingestion.NewMetrics(reg)))
	}
	service := ingestion.NewService(
		normalizer.New(),
		repository.NewAnomalyRepository(conn.Pool),
		repository.NewIngestionLogRepository(conn.Pool),
		opts...,
	)

	return &app{
		conn:    conn,
		service: service,
		syncer:  oracle.NewSyncer(service),
	}, nil
}

func (a *app) Close() {
	db.CloseShared()
}
