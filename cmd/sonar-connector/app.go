package main

import (
	"time"

	"go.uber.org/fx"

	"github.com/sleroy/komea-salesforce-connector/config"
	"github.com/sleroy/komea-salesforce-connector/internal/kafka"
	"github.com/sleroy/komea-salesforce-connector/internal/komea"
	"github.com/sleroy/komea-salesforce-connector/internal/rest"
	"github.com/sleroy/komea-salesforce-connector/internal/service"
	"github.com/sleroy/komea-salesforce-connector/internal/sonar"
	"github.com/sleroy/komea-salesforce-connector/internal/timescaledb"
)

// appOptions wires configuration, clients, measure mirrors and the
// orchestration service.
func appOptions(cfg *config.Config) fx.Option {
	return fx.Options(
		fx.Supply(cfg),
		fx.Provide(
			fx.Annotate(NewSonarClient, fx.As(new(service.SonarAPI))),
			fx.Annotate(NewKomeaClient, fx.As(new(service.KomeaAPI))),
			kafka.NewMeasureProducer,
			timescaledb.NewMeasureStore,
			NewMeasureRecorders,
			service.NewSonarKomeaService,
		),
	)
}

// --- Factory Functions ---

func transportOptions(cfg *config.Config, insecure bool, timeout time.Duration) rest.Options {
	return rest.Options{
		Timeout:     timeout,
		InsecureTLS: insecure,
		RateLimit:   cfg.Transport.RateLimit,
		RateBurst:   cfg.Transport.RateBurst,
		Debug:       cfg.Transport.Debug,
	}
}

func NewSonarClient(cfg *config.Config) (*sonar.Client, error) {
	if err := cfg.RequireSonar(); err != nil {
		return nil, err
	}
	t := rest.NewTransport(transportOptions(cfg, cfg.Sonar.InsecureTLS, cfg.Sonar.Timeout))
	return sonar.NewClient(*cfg.Sonar, t), nil
}

func NewKomeaClient(cfg *config.Config) (*komea.Client, error) {
	if err := cfg.RequireKomea(); err != nil {
		return nil, err
	}
	t := rest.NewTransport(transportOptions(cfg, cfg.Komea.InsecureTLS, cfg.Komea.Timeout))
	return komea.NewClient(*cfg.Komea, t), nil
}

// NewMeasureRecorders keeps the mirrors that are configured.
func NewMeasureRecorders(producer *kafka.MeasureProducer, store *timescaledb.MeasureStore) []service.MeasureRecorder {
	var recorders []service.MeasureRecorder
	if producer != nil {
		recorders = append(recorders, producer)
	}
	if store != nil {
		recorders = append(recorders, store)
	}
	return recorders
}
