package cmd

import (
	"database/sql"

	_ "github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"

	"github.com/vibast-solutions/ms-go-mobile-payments/app/provider"
	"github.com/vibast-solutions/ms-go-mobile-payments/app/repository"
	"github.com/vibast-solutions/ms-go-mobile-payments/app/service"
	"github.com/vibast-solutions/ms-go-mobile-payments/config"
)

const webhookPath = "/api/payments/webhook/"

type dependencies struct {
	db             *sql.DB
	paymentService *service.PaymentService
}

func (d *dependencies) Close() {
	if err := d.db.Close(); err != nil {
		logrus.WithError(err).Warn("Failed to close database")
	}
}

func mustLoadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := configureLogging(cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}
	return cfg
}

func mustOpenDB(cfg *config.Config) *sql.DB {
	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		logrus.WithError(err).Fatal("Failed to ping database")
	}
	return db
}

func newMavianceProvider(cfg *config.Config) *provider.MavianceProvider {
	callbackURL := ""
	returnBaseURL := ""
	if cfg.App.PublicBaseURL != "" {
		callbackURL = cfg.App.PublicBaseURL + webhookPath + provider.CodeMaviance
		returnBaseURL = cfg.App.PublicBaseURL + "/api/payments/status"
	}

	return provider.NewMavianceProvider(provider.MavianceConfig{
		PublicKey:      cfg.Maviance.PublicKey,
		SecretKey:      cfg.Maviance.SecretKey,
		BaseURL:        cfg.Maviance.BaseURL,
		MerchantNumber: cfg.Maviance.MerchantNumber,
		WebhookSecret:  cfg.Maviance.WebhookSecret,
		CallbackURL:    callbackURL,
		ReturnBaseURL:  returnBaseURL,
		TokenTimeout:   cfg.Maviance.TokenTimeout,
		HTTPTimeout:    cfg.Maviance.HTTPTimeout,
	})
}

func mustCreateDependencies() (*config.Config, *dependencies) {
	cfg := mustLoadConfig()
	db := mustOpenDB(cfg)

	paymentService := service.NewPaymentService(
		repository.NewTransactionRepository(db),
		repository.NewProfileRepository(db),
		repository.NewSubscriptionRepository(db),
		repository.NewPaymentEventRepository(db),
		repository.NewPaymentCallbackRepository(db),
		provider.NewRegistry(newMavianceProvider(cfg)),
		cfg.Payments,
	)

	return cfg, &dependencies{db: db, paymentService: paymentService}
}
