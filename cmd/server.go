package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/example/nira-appointments/internal/auth"
	"github.com/example/nira-appointments/internal/booking"
	"github.com/example/nira-appointments/internal/config"
	"github.com/example/nira-appointments/internal/telemetry"
	"github.com/example/nira-appointments/internal/web"
)

func newServerCmd() *cobra.Command {
	var migrateUp bool

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the booking site, staff pages and JSON API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			if err := cfg.RequireCookieKeys(); err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			shutdown := telemetry.Setup(ctx, "nira-appointments", Version)
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					log.Printf("otel shutdown err=%v", err)
				}
			}()

			st, err := openStore(ctx, cfg, migrateUp)
			if err != nil {
				return err
			}
			defer st.Close()

			authOpts := []auth.Option{auth.WithTTL(cfg.SessionTTL)}
			if cfg.RedisAddr != "" {
				rdb := redis.NewClient(&redis.Options{
					Addr:     cfg.RedisAddr,
					Password: cfg.RedisPassword,
					DB:       cfg.RedisDB,
				})
				defer rdb.Close()

				registry := auth.NewRedisRegistry(rdb)
				if err := registry.Ping(ctx); err != nil {
					return fmt.Errorf("redis ping: %w", err)
				}
				authOpts = append(authOpts, auth.WithRegistry(registry))
			}

			ws := &web.Server{
				Booking: booking.NewService(st, booking.WithLocation(cfg.Location)),
				Auth:    auth.NewStore(st, cfg.CookieHashKey, cfg.CookieBlockKey, authOpts...),
				Policy:  policyFrom(cfg),
				Limiter: web.NewRateLimiter(cfg.RateLimitPerMinute, cfg.RateLimitBurst, cfg.TrustedProxies),
				BaseURL: cfg.BaseURL,
			}

			log.Printf("starting nira version=%s backend=%s daily_limit=%d window_days=%d tz=%s",
				Version, backendFor(cfg), cfg.DailyLimit, cfg.WindowDays, cfg.Location)
			handler := otelhttp.NewHandler(web.LoggingMiddleware(ws.Routes()), "nira")
			return web.Start(ctx, cfg.ListenAddr, handler)
		},
	}

	cmd.Flags().BoolVar(&migrateUp, "migrate", true, "run database migrations on startup")

	cmd.Flags().Lookup("migrate").NoOptDefVal = "true"
	return cmd
}
