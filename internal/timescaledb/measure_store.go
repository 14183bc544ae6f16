package timescaledb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
	"go.uber.org/fx"

	"github.com/sleroy/komea-salesforce-connector/config"
	"github.com/sleroy/komea-salesforce-connector/internal/model"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	measuresTableName = "komea_measures"
	colTime           = "time"
	colMetricKey      = "metric_key"
	colEntity         = "entity"
	colValue          = "value"
	colTags           = "tags" // JSONB
)

// Columns lists the archive columns in CopyRows order.
var Columns = []string{colTime, colMetricKey, colEntity, colValue, colTags}

// MeasureStore archives every pushed measure into a TimescaleDB hypertable.
type MeasureStore struct {
	pool      *pgxpool.Pool
	tableName string
}

// NewMeasureStore returns nil when no DSN is configured. The pool is
// verified and the hypertable created before the store is handed out.
func NewMeasureStore(lc fx.Lifecycle, cfg *config.Config) (*MeasureStore, error) {
	if cfg.TimescaleDB.DSN == "" {
		log.Debug().Msg("TimescaleDB DSN not configured, measure archive disabled")
		return nil, nil
	}
	poolConfig, err := pgxpool.ParseConfig(cfg.TimescaleDB.DSN)
	if err != nil {
		log.Error().Err(err).Msg("Failed to parse TimescaleDB DSN")
		return nil, fmt.Errorf("invalid TimescaleDB DSN: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		log.Error().Err(err).Msg("Unable to create connection pool to TimescaleDB")
		return nil, fmt.Errorf("failed to connect to TimescaleDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		log.Error().Err(err).Msg("Failed to ping TimescaleDB")
		return nil, fmt.Errorf("failed to ping TimescaleDB: %w", err)
	}

	store := &MeasureStore{pool: pool, tableName: measuresTableName}

	setupCtx, cancelSetup := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelSetup()
	if err := store.ensureHypertable(setupCtx); err != nil {
		pool.Close()
		log.Error().Err(err).Msg("Failed to ensure TimescaleDB hypertable exists")
		return nil, fmt.Errorf("failed ensuring hypertable: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			log.Info().Msg("Closing TimescaleDB connection pool")
			store.Close()
			return nil
		},
	})
	log.Info().Str("table", store.tableName).Msg("TimescaleDB measure archive ready")
	return store, nil
}

func (s *MeasureStore) ensureHypertable(ctx context.Context) error {
	createTableSQL := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			%s TIMESTAMPTZ NOT NULL,
			%s TEXT NOT NULL,
			%s TEXT NOT NULL,
			%s DOUBLE PRECISION NOT NULL,
			%s JSONB
		);`,
		s.tableName, colTime, colMetricKey, colEntity, colValue, colTags)
	if _, err := s.pool.Exec(ctx, createTableSQL); err != nil {
		return fmt.Errorf("failed to create base table %s: %w", s.tableName, err)
	}

	var isHypertable bool
	_ = s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM timescaledb_information.hypertables WHERE hypertable_name = $1);`,
		s.tableName).Scan(&isHypertable)
	if isHypertable {
		return nil
	}

	if _, err := s.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS timescaledb;"); err != nil {
		log.Warn().Err(err).Msg("Failed to ensure timescaledb extension exists, trying to proceed")
	}
	createHyperSQL := fmt.Sprintf(
		"SELECT create_hypertable('%s', '%s', if_not_exists => TRUE, chunk_time_interval => INTERVAL '7 days');",
		s.tableName, colTime)
	if _, err := s.pool.Exec(ctx, createHyperSQL); err != nil && !strings.Contains(err.Error(), "already a hypertable") {
		return fmt.Errorf("failed to create hypertable %s: %w", s.tableName, err)
	}

	indexSQL := fmt.Sprintf(
		"CREATE INDEX IF NOT EXISTS idx_%s_key_entity_time ON %s (%s, %s, %s DESC);",
		s.tableName, s.tableName, colMetricKey, colEntity, colTime)
	if _, err := s.pool.Exec(ctx, indexSQL); err != nil {
		log.Warn().Err(err).Msg("Failed to create index on measures table (continuing)")
	}
	log.Info().Str("table", s.tableName).Msg("Ensured hypertable")
	return nil
}

func (s *MeasureStore) Name() string {
	return "timescaledb:" + s.tableName
}

// Record bulk inserts one row per measure value.
func (s *MeasureStore) Record(ctx context.Context, points []model.TimeSeriesPoint) error {
	rows := CopyRows(points)
	if len(rows) == 0 {
		return nil
	}
	copyCount, err := s.pool.CopyFrom(ctx, pgx.Identifier{s.tableName}, Columns, pgx.CopyFromRows(rows))
	if err != nil {
		log.Error().Err(err).Int("rows", len(rows)).Msg("Failed to bulk insert measures into TimescaleDB")
		return fmt.Errorf("timescaledb copyfrom failed: %w", err)
	}
	if int(copyCount) != len(rows) {
		log.Warn().Int64("inserted", copyCount).Int("expected", len(rows)).Msg("TimescaleDB CopyFrom row count mismatch")
	}
	return nil
}

func (s *MeasureStore) Close() {
	s.pool.Close()
}

// CopyRows flattens points into archive rows. Tags that fail to encode are
// stored as NULL so the value itself is kept.
func CopyRows(points []model.TimeSeriesPoint) [][]any {
	var rows [][]any
	for _, p := range points {
		var tags []byte
		if len(p.Tags) > 0 {
			encoded, err := json.Marshal(p.Tags)
			if err != nil {
				log.Error().Err(err).Str("metric", p.MetricKey).Msg("Failed to marshal measure tags, inserting null")
			} else {
				tags = encoded
			}
		}
		for _, m := range p.Measures {
			rows = append(rows, []any{m.Date, p.MetricKey, p.Tags["entity"], m.Value, tags})
		}
	}
	return rows
}
