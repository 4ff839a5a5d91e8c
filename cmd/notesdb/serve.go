package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"notes-datalayer/internal/core/auth"
	"notes-datalayer/internal/core/logger"
	"notes-datalayer/internal/core/server"
	"notes-datalayer/internal/transport/http/router"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve health, metrics and the admin inspection API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		defer logger.RedirectStdLog(log.Named("stdlog"), zapcore.InfoLevel)()
		if cfg.App.Env != "local" {
			gin.SetMode(gin.ReleaseMode)
		}
		gin.DefaultWriter = logger.ToWriter(log.Named("gin"), zapcore.DebugLevel)
		gin.DefaultErrorWriter = logger.ToWriter(log.Named("gin"), zapcore.ErrorLevel)

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer func() {
			if err := st.Close(); err != nil {
				log.Warn("close database", zap.Error(err))
			}
		}()

		if cfg.DB.AutoMigrate {
			if err := st.Migrate(ctx); err != nil {
				return err
			}
		}

		jwter := &auth.JWTer{
			Secret: []byte(cfg.JWT.Secret),
			Issuer: cfg.JWT.Issuer,
			TTL:    time.Duration(cfg.JWT.AccessTokenTTLMin) * time.Minute,
		}
		if len(jwter.Secret) == 0 {
			log.Warn("jwt.secret is empty, admin endpoints will reject every request")
		}

		o := cfg.Ops
		r := router.NewOpsEngine(log, st, jwter, router.Limits{
			RPS:            o.RateLimitRPS,
			Burst:          o.RateLimitBurst,
			PerIP:          o.RateLimitPerIP,
			MaxConcurrent:  o.MaxConcurrent,
			QueueWait:      time.Duration(o.QueueWaitMs) * time.Millisecond,
			RequestTimeout: seconds(o.RequestTimeoutSec),
		})

		addr := server.Addr(o.HTTP.Host, o.HTTP.Port)
		srv := server.BuildServer(addr, r,
			seconds(o.HTTP.ReadTimeoutSec),
			seconds(o.HTTP.WriteTimeoutSec),
			seconds(o.HTTP.IdleTimeoutSec),
		)

		host4human := o.HTTP.Host
		if host4human == "" || host4human == "0.0.0.0" {
			host4human = "127.0.0.1"
		}
		baseURL := "http://" + host4human + ":" + fmt.Sprint(o.HTTP.Port)
		log.Info("ops api starting",
			zap.String("addr", addr),
			zap.String("health", baseURL+"/health"),
			zap.String("metrics", baseURL+"/metrics"),
			zap.String("admin_v1", baseURL+"/admin/v1"),
		)
		return server.Run(ctx, srv, log, 10*time.Second)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
