package main

import (
	"context"
	"log/slog"
	"time"
)

// StatsStore je vše, co summarizer potřebuje od úložiště.
type StatsStore interface {
	Summary(ctx context.Context) ([]SummaryRow, error)
	LatestPerSensor(ctx context.Context) ([]LatestReading, error)
}

// Summarizer periodicky vypisuje obsah databáze do logu.
// Běží ve vlastní goroutině, s ingestorem sdílí jen úložiště -
// pomalý dotaz tedy nikdy nezablokuje příjem zpráv.
type Summarizer struct {
	store    StatsStore
	logger   *slog.Logger
	interval time.Duration
}

func NewSummarizer(store StatsStore, logger *slog.Logger, interval time.Duration) *Summarizer {
	return &Summarizer{store: store, logger: logger, interval: interval}
}

// Run spouští smyčku na pozadí, která v pevném intervalu vypíše statistiky.
// Ukončí se zrušením contextu (shutdown aplikace).
func (s *Summarizer) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Pokud main context skončí (shutdown), ukončíme i tuto goroutinu.
			return
		case <-ticker.C:
			s.reportOnce(ctx)
		}
	}
}

// reportOnce provede jeden cyklus: agregované statistiky + poslední hodnoty.
// Prázdná DB není chyba - prostě nevypíšeme nic.
// Chyba dotazu je jen warning, další tik pojede normálně.
func (s *Summarizer) reportOnce(ctx context.Context) {
	summary, err := s.store.Summary(ctx)
	if err != nil {
		s.logger.Warn("Dotaz na statistiky selhal", "error", err)
		return
	}

	for _, row := range summary {
		s.logger.Info("Statistika senzoru",
			"sensor", row.SensorName,
			"type", row.SensorType,
			"samples", row.Count,
			"min", row.Min,
			"max", row.Max,
			"avg", row.Avg,
		)
	}

	latest, err := s.store.LatestPerSensor(ctx)
	if err != nil {
		s.logger.Warn("Dotaz na poslední hodnoty selhal", "error", err)
		return
	}

	for _, lr := range latest {
		s.logger.Info("Poslední měření",
			"sensor", lr.SensorName,
			"type", lr.SensorType,
			"value", lr.Value,
			"unit", lr.Unit,
			"timestamp", lr.Timestamp,
		)
	}
}
