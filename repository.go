package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Repository zapouzdřuje práci s databázemi.
// Zbytek aplikace (ingestor, summarizer) neví, jak se píše SQL, jen volá metody repozitáře.
type Repository struct {
	pgPool *pgxpool.Pool // Pool spojení do TimescaleDB
	redis  *redis.Client // Klient pro Valkey
	logger *slog.Logger
}

// NewRepository vytvoří a ověří připojení k oběma databázím.
func NewRepository(ctx context.Context, cfg Config, logger *slog.Logger) (*Repository, error) {
	// 1. Připojení k Postgres
	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		return nil, fmt.Errorf("chyba konfigurace DB: %w", err)
	}
	// Ověření spojení (Ping)
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("DB není dostupná: %w", err)
	}

	// 2. Připojení k Valkey (Redis)
	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.ValkeyAddr,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("Valkey není dostupný: %w", err)
	}

	return &Repository{pgPool: pool, redis: rdb, logger: logger}, nil
}

// Close uzavře spojení při ukončení aplikace.
func (r *Repository) Close() {
	r.pgPool.Close()
	r.redis.Close()
}

// InitSchema idempotentně založí tabulku a indexy.
// Volá se při každém startu - IF NOT EXISTS zaručuje, že existující data přežijí.
func (r *Repository) InitSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS sensor_readings (
			id          BIGSERIAL PRIMARY KEY,
			sensor_name TEXT NOT NULL,
			sensor_type TEXT NOT NULL,
			value       DOUBLE PRECISION NOT NULL,
			unit        TEXT NOT NULL DEFAULT '',
			timestamp   TEXT NOT NULL,
			received_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		// Index na timestamp kvůli dotazům na časové rozsahy.
		`CREATE INDEX IF NOT EXISTS idx_sensor_readings_timestamp ON sensor_readings (timestamp)`,
		// Index na sensor_name kvůli filtrování podle senzoru.
		`CREATE INDEX IF NOT EXISTS idx_sensor_readings_sensor_name ON sensor_readings (sensor_name)`,
	}

	for _, stmt := range statements {
		if _, err := r.pgPool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("chyba při zakládání schématu: %w", err)
		}
	}
	return nil
}

// SaveReading uloží měření do obou úložišť (Cold Path & Hot Path).
// ID a received_at přidělí Postgres a zapíšeme je zpět do struktury.
func (r *Repository) SaveReading(ctx context.Context, reading *Reading) error {

	// A. Uložení do TimescaleDB (Historie)
	// Toto je naše "Cold Storage" nebo "Source of Truth". Append-only, žádné updaty.
	query := `INSERT INTO sensor_readings (sensor_name, sensor_type, value, unit, timestamp)
	          VALUES ($1, $2, $3, $4, $5)
	          RETURNING id, received_at`

	err := r.pgPool.QueryRow(ctx, query,
		reading.SensorName, reading.SensorType, reading.Value, reading.Unit, reading.Timestamp,
	).Scan(&reading.ID, &reading.ReceivedAt)
	if err != nil {
		return fmt.Errorf("chyba insertu do PG: %w", err)
	}

	// B. Uložení do Valkey (Aktuální stav)
	// Toto je "Hot Storage" pro dashboard. Přepisujeme stále dokola poslední hodnotu.
	// Klíč: "sensor:last:{name}:{type}" (např. "sensor:last:deskA:temperature")
	key := fmt.Sprintf("sensor:last:%s:%s", reading.SensorName, reading.SensorType)

	// Ukládáme hodnotu s expirací 24h (aby zmizely mrtvé senzory z cache).
	// Chyba cache NENÍ kritická - řádek už je bezpečně v PG, takže jen warning.
	if err := r.redis.Set(ctx, key, reading.Value, 24*time.Hour).Err(); err != nil {
		r.logger.Warn("Chyba update Valkey", "key", key, "error", err)
	}

	return nil
}

// LatestPerSensor vrátí pro každou dvojici (senzor, typ) nejnovější měření.
// Řadíme podle timestampu (ISO-8601 stringy se řadí lexikograficky správně),
// při shodě vyhrává vyšší id - tedy později vložený řádek.
func (r *Repository) LatestPerSensor(ctx context.Context) ([]LatestReading, error) {
	query := `SELECT DISTINCT ON (sensor_name, sensor_type)
	                 sensor_name, sensor_type, value, unit, timestamp
	          FROM sensor_readings
	          ORDER BY sensor_name, sensor_type, timestamp DESC, id DESC`

	rows, err := r.pgPool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("chyba dotazu na poslední hodnoty: %w", err)
	}
	defer rows.Close() // Důležité: Vždy zavřít rows pro uvolnění spojení v poolu

	var result []LatestReading
	for rows.Next() {
		var lr LatestReading
		if err := rows.Scan(&lr.SensorName, &lr.SensorType, &lr.Value, &lr.Unit, &lr.Timestamp); err != nil {
			return nil, fmt.Errorf("chyba čtení řádku: %w", err)
		}
		result = append(result, lr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("chyba iterace přes řádky: %w", err)
	}
	return result, nil
}

// Summary vrátí agregační statistiky (počet, min, max, průměr)
// seskupené podle dvojice (senzor, typ).
func (r *Repository) Summary(ctx context.Context) ([]SummaryRow, error) {
	query := `SELECT sensor_name, sensor_type,
	                 COUNT(*), MIN(value), MAX(value), AVG(value)
	          FROM sensor_readings
	          GROUP BY sensor_name, sensor_type
	          ORDER BY sensor_name, sensor_type`

	rows, err := r.pgPool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("chyba dotazu na statistiky: %w", err)
	}
	defer rows.Close()

	var result []SummaryRow
	for rows.Next() {
		var sr SummaryRow
		if err := rows.Scan(&sr.SensorName, &sr.SensorType, &sr.Count, &sr.Min, &sr.Max, &sr.Avg); err != nil {
			return nil, fmt.Errorf("chyba čtení řádku: %w", err)
		}
		result = append(result, sr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("chyba iterace přes řádky: %w", err)
	}
	return result, nil
}
