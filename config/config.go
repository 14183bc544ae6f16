package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/sleroy/komea-salesforce-connector/internal/connerr"
)

const EnvPrefix = "KOMEA_CONNECTOR"

type Config struct {
	Sonar       *SonarConfig
	Komea       *KomeaConfig
	Salesforce  *SalesforceConfig
	Pool        PoolConfig
	Transport   TransportConfig
	Mapper      MapperConfig
	Schedule    ScheduleConfig
	Kafka       KafkaConfig
	TimescaleDB TimescaleDBConfig
	Log         LogConfig
}

type SonarConfig struct {
	Host        string `validate:"required"`
	Port        int    `validate:"gte=0,lte=65535"`
	HTTPS       bool
	Login       string `validate:"required"`
	Password    string
	InsecureTLS bool
	Timeout     time.Duration
}

type KomeaConfig struct {
	MetricURL   string `validate:"required,url"`
	StorageURL  string `validate:"required,url"`
	Login       string
	Password    string
	InsecureTLS bool
	Timeout     time.Duration
}

type SalesforceConfig struct {
	LoginURL     string `validate:"required,url"`
	APIVersion   string `validate:"required"`
	ClientID     string
	ClientSecret string
	Username     string `validate:"required"`
	Password     string `validate:"required"`
	Token        string `validate:"required"`
	InsecureTLS  bool
	Timeout      time.Duration
}

type PoolConfig struct {
	Workers int
}

type TransportConfig struct {
	RateLimit float64
	RateBurst int
	Debug     bool
}

type MapperConfig struct {
	ExcludedTypes []string
}

type ScheduleConfig struct {
	Cron string
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type TimescaleDBConfig struct {
	DSN string
}

type LogConfig struct {
	Level  string
	Pretty bool
}

var (
	sonarKeys      = []string{"host", "port", "https", "login", "password", "insecure_tls", "timeout"}
	komeaKeys      = []string{"metric_url", "storage_url", "login", "password", "insecure_tls", "timeout"}
	salesforceKeys = []string{"login_url", "api_version", "client_id", "client_secret", "username", "password", "token", "insecure_tls", "timeout"}
)

var validate = validator.New()

// NewConfig loads the configuration from a YAML file and the environment.
// An empty path looks for config/default.yaml, whose absence is not an
// error; sections missing from both sources stay nil.
func NewConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("default")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for section, keys := range map[string][]string{"sonar": sonarKeys, "komea": komeaKeys, "salesforce": salesforceKeys} {
		for _, k := range keys {
			_ = v.BindEnv(section + "." + k)
		}
	}

	v.SetDefault("pool.workers", 8)
	v.SetDefault("transport.rate_limit", 0)
	v.SetDefault("transport.rate_burst", 1)
	v.SetDefault("transport.debug", false)
	v.SetDefault("mapper.excluded_types", "DATA,DISTRIB,LEVEL,STRING")
	v.SetDefault("schedule.cron", "0 0 2 * * *") // every day at 02:00
	v.SetDefault("kafka.brokers", "")
	v.SetDefault("kafka.topic", "komea_measures")
	v.SetDefault("timescaledb.dsn", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", true)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, connerr.New(connerr.KindConfiguration, "config.read", err)
		}
		log.Warn().Err(err).Msg("Error reading config file")
	}

	var config Config

	// --- Sonar ---
	if sectionPresent(v, "sonar", sonarKeys) {
		config.Sonar = &SonarConfig{
			Host:        v.GetString("sonar.host"),
			Port:        v.GetInt("sonar.port"),
			HTTPS:       v.GetBool("sonar.https"),
			Login:       v.GetString("sonar.login"),
			Password:    v.GetString("sonar.password"),
			InsecureTLS: v.GetBool("sonar.insecure_tls"),
			Timeout:     v.GetDuration("sonar.timeout"),
		}
	}

	// --- Komea ---
	if sectionPresent(v, "komea", komeaKeys) {
		config.Komea = &KomeaConfig{
			MetricURL:   v.GetString("komea.metric_url"),
			StorageURL:  v.GetString("komea.storage_url"),
			Login:       v.GetString("komea.login"),
			Password:    v.GetString("komea.password"),
			InsecureTLS: v.GetBool("komea.insecure_tls"),
			Timeout:     v.GetDuration("komea.timeout"),
		}
	}

	// --- Salesforce ---
	if sectionPresent(v, "salesforce", salesforceKeys) {
		config.Salesforce = &SalesforceConfig{
			LoginURL:     v.GetString("salesforce.login_url"),
			APIVersion:   v.GetString("salesforce.api_version"),
			ClientID:     v.GetString("salesforce.client_id"),
			ClientSecret: v.GetString("salesforce.client_secret"),
			Username:     v.GetString("salesforce.username"),
			Password:     v.GetString("salesforce.password"),
			Token:        v.GetString("salesforce.token"),
			InsecureTLS:  v.GetBool("salesforce.insecure_tls"),
			Timeout:      v.GetDuration("salesforce.timeout"),
		}
		config.Salesforce.applyDefaults()
	}

	config.Pool.Workers = v.GetInt("pool.workers")
	config.Transport.RateLimit = v.GetFloat64("transport.rate_limit")
	config.Transport.RateBurst = v.GetInt("transport.rate_burst")
	config.Transport.Debug = v.GetBool("transport.debug")
	config.Mapper.ExcludedTypes = splitList(v.GetStringSlice("mapper.excluded_types"))
	config.Schedule.Cron = v.GetString("schedule.cron")
	config.Kafka.Brokers = splitList(v.GetStringSlice("kafka.brokers"))
	config.Kafka.Topic = v.GetString("kafka.topic")
	config.TimescaleDB.DSN = v.GetString("timescaledb.dsn")
	config.Log.Level = v.GetString("log.level")
	config.Log.Pretty = v.GetBool("log.pretty")

	if config.Pool.Workers <= 0 {
		config.Pool.Workers = 8
	}

	log.Debug().
		Bool("sonar", config.Sonar != nil).
		Bool("komea", config.Komea != nil).
		Bool("salesforce", config.Salesforce != nil).
		Int("workers", config.Pool.Workers).
		Msg("Config loaded")
	return &config, nil
}

// RequireSonar fails when the sonar section is missing or incomplete.
func (c *Config) RequireSonar() error {
	if c.Sonar == nil {
		return missingSection("sonar", "Sonar")
	}
	return checkSection("sonar", c.Sonar)
}

func (c *Config) RequireKomea() error {
	if c.Komea == nil {
		return missingSection("komea", "Komea")
	}
	return checkSection("komea", c.Komea)
}

func (c *Config) RequireSalesforce() error {
	if c.Salesforce == nil {
		return missingSection("salesforce", "Salesforce")
	}
	return checkSection("salesforce", c.Salesforce)
}

// SalesforceOrEmpty returns the salesforce section, creating it with defaults
// so command line credentials can fill it in.
func (c *Config) SalesforceOrEmpty() *SalesforceConfig {
	if c.Salesforce == nil {
		c.Salesforce = &SalesforceConfig{}
		c.Salesforce.applyDefaults()
	}
	return c.Salesforce
}

func (s *SalesforceConfig) applyDefaults() {
	if s.LoginURL == "" {
		s.LoginURL = "https://login.salesforce.com"
	}
	if s.APIVersion == "" {
		s.APIVersion = "42.0"
	}
}

func missingSection(section, service string) error {
	return connerr.New(connerr.KindConfiguration, "config."+section,
		fmt.Errorf("informations to connect to the %s server must be defined into the configuration file", service))
}

func checkSection(section string, s any) error {
	if err := validate.Struct(s); err != nil {
		return connerr.New(connerr.KindConfiguration, "config."+section, err)
	}
	return nil
}

func sectionPresent(v *viper.Viper, section string, keys []string) bool {
	if v.IsSet(section) {
		return true
	}
	for _, k := range keys {
		if v.IsSet(section + "." + k) {
			return true
		}
	}
	return false
}

// splitList accepts both YAML lists and comma separated strings.
func splitList(values []string) []string {
	var out []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
