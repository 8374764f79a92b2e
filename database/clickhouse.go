package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"go.uber.org/zap"

	"sberauto/predictor/config"
)

// ErrNotConfigured is returned when a database is requested without the
// settings needed to reach it.
var ErrNotConfigured = errors.New("database is not configured")

type ClickHouseClient struct {
	Conn clickhouse.Conn
	log  *zap.Logger
}

func clickHouseOptions(cfg config.ClickHouse) (*clickhouse.Options, error) {
	if cfg.Host == "" || cfg.DBName == "" {
		return nil, fmt.Errorf("%w: CLICKHOUSE_HOST and CLICKHOUSE_DB_NAME must be set", ErrNotConfigured)
	}
	return &clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.NativePort)},
		Auth: clickhouse.Auth{
			Database: cfg.DBName,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		ClientInfo: clickhouse.ClientInfo{
			Products: []struct {
				Name    string
				Version string
			}{{Name: "sberauto-predictor", Version: "1.0.0"}},
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		DialTimeout: time.Second * 5,
	}, nil
}

func NewClickHouseDB(ctx context.Context, cfg config.ClickHouse, log *zap.Logger) (*ClickHouseClient, error) {
	options, err := clickHouseOptions(cfg)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	conn, err := clickhouse.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse via Native TCP: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	log.Info("connected to ClickHouse", zap.String("addr", options.Addr[0]), zap.String("database", cfg.DBName))
	return &ClickHouseClient{Conn: conn, log: log}, nil
}

func (c *ClickHouseClient) Close() {
	if c.Conn != nil {
		if err := c.Conn.Close(); err != nil {
			c.log.Warn("error closing ClickHouse connection", zap.Error(err))
			return
		}
		c.log.Info("ClickHouse connection closed")
	}
}
