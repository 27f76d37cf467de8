package cmd

import (
	"context"
	"fmt"

	"github.com/example/nira-appointments/internal/booking"
	"github.com/example/nira-appointments/internal/config"
	"github.com/example/nira-appointments/internal/db"
	"github.com/example/nira-appointments/internal/migrate"
	"github.com/example/nira-appointments/internal/store"
	"github.com/example/nira-appointments/internal/store/gormstore"
	"github.com/example/nira-appointments/internal/store/postgres"
)

// backendFor resolves STORE_BACKEND=auto from the DATABASE_URL scheme.
func backendFor(cfg config.Config) string {
	if cfg.StoreBackend != config.BackendAuto && cfg.StoreBackend != "" {
		return cfg.StoreBackend
	}
	switch cfg.DatabaseScheme() {
	case "postgres", "postgresql":
		return config.BackendPgx
	default:
		return config.BackendGorm
	}
}

func openStore(ctx context.Context, cfg config.Config, migrateUp bool) (store.Store, error) {
	switch backendFor(cfg) {
	case config.BackendPgx:
		d, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := d.Ping(ctx); err != nil {
			d.Close()
			return nil, fmt.Errorf("db ping: %w", err)
		}
		if migrateUp {
			if err := migrate.Up(ctx, d); err != nil {
				d.Close()
				return nil, err
			}
		}
		return postgres.NewStore(d), nil

	default:
		st, err := gormstore.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := st.Ping(ctx); err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("db ping: %w", err)
		}
		if migrateUp {
			if err := st.Migrate(ctx); err != nil {
				_ = st.Close()
				return nil, err
			}
		}
		return st, nil
	}
}

func policyFrom(cfg config.Config) booking.Policy {
	return booking.Policy{
		DailyLimit:       cfg.DailyLimit,
		WindowDays:       cfg.WindowDays,
		BirthDateFormats: cfg.BirthDateFormats,
	}
}
