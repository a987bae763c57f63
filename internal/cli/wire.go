package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/diagnosis/reservations/internal/domain"
	"github.com/diagnosis/reservations/internal/platform/idempotency"
	"github.com/diagnosis/reservations/internal/platform/mailer"
	"github.com/diagnosis/reservations/internal/reservation"
	"github.com/diagnosis/reservations/pkg/config"
	"github.com/diagnosis/reservations/pkg/events"
	"github.com/diagnosis/reservations/pkg/logger"
)

// loadConfig runs the startup sequence and refuses to continue on any
// configuration problem. Missing email settings are also logged by name so
// operators see exactly which variables to set.
func loadConfig(logOut io.Writer) (*config.Config, error) {
	cfg, err := config.LoadAll()
	if err != nil {
		return nil, err
	}
	logger.Configure(logOut, cfg.Log.Level, cfg.Log.Format)

	if missing := cfg.MissingEmailSettings(); len(missing) > 0 {
		logger.Warn("Email settings incomplete", "missing", missing, "provider", cfg.Email.Provider)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func controllerConfig(cfg *config.Config) (reservation.Config, error) {
	loc, err := cfg.Location()
	if err != nil {
		return reservation.Config{}, err
	}
	return reservation.Config{
		AdminTemplateID: cfg.Email.AdminTemplateID,
		UserTemplateID:  cfg.Email.UserTemplateID,
		Admin:           mailer.Recipient{Email: cfg.Email.AdminEmail, Name: cfg.Email.AdminName},
		Window:          domain.ServiceWindow{Open: cfg.Form.OpenTime, Close: cfg.Form.CloseTime},
		SlotStep:        cfg.Form.SlotStep,
		Location:        loc,
	}, nil
}

// newPublisher connects to NATS when NATS_URL is set.
func newPublisher(cfg *config.Config) (events.Publisher, error) {
	if cfg.NATS.URL == "" {
		return events.NoopPublisher{}, nil
	}
	bus, err := events.NewNATSEventBus(cfg.NATS.URL)
	if err != nil {
		return nil, err
	}
	logger.Info("Publishing reservation events", "nats_url", cfg.NATS.URL)
	return bus, nil
}

// newStore picks Redis when REDIS_URL is set and the in-memory store otherwise.
func newStore(ctx context.Context, cfg *config.Config) (idempotency.Store, func() error, error) {
	if cfg.Redis.URL == "" {
		return idempotency.NewMemoryStore(), func() error { return nil }, nil
	}
	store, err := idempotency.NewRedisStore(ctx, cfg.Redis.URL)
	if err != nil {
		return nil, nil, err
	}
	return store, store.Close, nil
}

// newController wires the sender and publisher selected by cfg.
func newController(cfg *config.Config, opts ...reservation.Option) (*reservation.Controller, events.Publisher, error) {
	sender, err := mailer.New(cfg.Email)
	if err != nil {
		return nil, nil, fmt.Errorf("email transport: %w", err)
	}
	ctrlCfg, err := controllerConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	pub, err := newPublisher(cfg)
	if err != nil {
		return nil, nil, err
	}
	ctrl, err := reservation.NewController(sender, pub, ctrlCfg, opts...)
	if err != nil {
		pub.Close()
		return nil, nil, err
	}
	return ctrl, pub, nil
}
