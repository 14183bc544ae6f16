package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"go.uber.org/fx"

	"github.com/sleroy/komea-salesforce-connector/config"
	"github.com/sleroy/komea-salesforce-connector/internal/logging"
	"github.com/sleroy/komea-salesforce-connector/internal/rest"
	"github.com/sleroy/komea-salesforce-connector/internal/salesforce"
	"github.com/sleroy/komea-salesforce-connector/internal/service"
)

type options struct {
	configPath string
	username   string
	password   string
	token      string

	test       bool
	report     string
	reportList bool
}

func (o *options) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.configPath, "config", "", "Configuration file, ./config/default.yaml when empty")
	fs.StringVarP(&o.username, "username", "u", "", "Login on Salesforce, overrides salesforce.username")
	fs.StringVarP(&o.password, "password", "p", "", "Account password, overrides salesforce.password")
	fs.StringVarP(&o.token, "token", "k", "", "Security token, overrides salesforce.token")
	fs.BoolVarP(&o.test, "test", "t", false, "Test the connection with Salesforce")
	fs.StringVarP(&o.report, "report", "r", "", "Prints a report")
	fs.BoolVarP(&o.reportList, "report-list", "l", false, "Prints the list of reports")
}

func (o *options) Complete() error {
	count := 0
	for _, on := range []bool{o.test, o.report != "", o.reportList} {
		if on {
			count++
		}
	}
	switch count {
	case 0:
		return errors.New("no action selected, use --help to list them")
	case 1:
		return nil
	default:
		return errors.New("only one action can be run at a time")
	}
}

// apply overrides the configured credentials with the command line ones.
func (o *options) apply(cfg *config.Config) error {
	sf := cfg.SalesforceOrEmpty()
	if o.username != "" {
		sf.Username = o.username
	}
	if o.password != "" {
		sf.Password = o.password
	}
	if o.token != "" {
		sf.Token = o.token
	}
	return cfg.RequireSalesforce()
}

func (o *options) Run(ctx context.Context, out io.Writer) error {
	cfg, err := config.NewConfig(o.configPath)
	if err != nil {
		return err
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Pretty)
	if err := o.apply(cfg); err != nil {
		return err
	}
	log.Info().Str("username", cfg.Salesforce.Username).Msg("Connection to Salesforce")

	var svc service.SalesforceService
	app := fx.New(
		fx.Supply(cfg),
		fx.Provide(
			fx.Annotate(NewSalesforceClient, fx.As(new(service.SalesforceAPI))),
			service.NewSalesforceService,
		),
		fx.Populate(&svc),
		fx.NopLogger,
	)
	if err := app.Err(); err != nil {
		return err
	}
	return o.runOnce(ctx, out, svc)
}

func (o *options) runOnce(ctx context.Context, out io.Writer, svc service.SalesforceService) error {
	switch {
	case o.test:
		return svc.TestConnection(ctx)
	case o.reportList:
		count, err := svc.ListReports(ctx, out)
		if err != nil {
			return err
		}
		log.Debug().Int("count", count).Msg("Reports printed")
		return nil
	case o.report != "":
		return svc.PrintReport(ctx, out, o.report)
	}
	return fmt.Errorf("no action selected")
}

func NewSalesforceClient(cfg *config.Config) *salesforce.Client {
	t := rest.NewTransport(rest.Options{
		Timeout:     cfg.Salesforce.Timeout,
		InsecureTLS: cfg.Salesforce.InsecureTLS,
		RateLimit:   cfg.Transport.RateLimit,
		RateBurst:   cfg.Transport.RateBurst,
		Debug:       cfg.Transport.Debug,
	})
	return salesforce.NewClient(*cfg.Salesforce, t)
}
