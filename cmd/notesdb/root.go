package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"notes-datalayer/internal/core/config"
	"notes-datalayer/internal/core/database"
	"notes-datalayer/internal/core/logger"
	"notes-datalayer/internal/store"
)

var (
	configPath string

	cfg      *config.Config
	log      *zap.Logger
	flushLog = func() {}
)

var rootCmd = &cobra.Command{
	Use:           "notesdb",
	Short:         "Persistence layer for the notes assistant",
	Long:          `notesdb owns the schema of users, notes, reminders, external tasks and sessions, and serves a read-only inspection API over them.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = c
		log, flushLog = logger.New(cfg.Log)
		log = log.With(zap.String("app", cfg.App.Name), zap.String("env", cfg.App.Env))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) { flushLog() },
}

func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		flushLog()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default $CONFIG_PATH or "+config.DefaultPath+")")
}

// openStore connects with the configured retry policy.
func openStore(ctx context.Context) (*store.Store, error) {
	d := cfg.DB
	db, err := database.Open(ctx, database.Opts{
		Driver:        d.Driver,
		DSN:           d.DSN,
		Username:      d.Username,
		Password:      d.Password,
		PoolSize:      d.PoolSize,
		MaxOverflow:   d.MaxOverflow,
		Recycle:       d.Recycle(),
		IdleTime:      d.IdleTime(),
		PrepareStmt:   d.PrepareStmt,
		LogLevel:      d.LogLevel,
		SlowThreshold: d.SlowThreshold(),
		Attempts:      d.ConnectAttempts,
		Backoff:       d.Backoff(),
	}, log)
	if err != nil {
		return nil, err
	}
	return store.New(db, log,
		store.WithPrePing(d.PrePing),
		store.WithTimeout(d.UnitOfWorkTimeout()),
	), nil
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }
