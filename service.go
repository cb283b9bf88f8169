package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
)

// Chyby dekódování. Volající podle nich pozná, PROČ byla zpráva zahozena,
// ale reakce je vždy stejná: warning log a jedeme dál.
var (
	ErrMalformedTopic   = errors.New("topic neodpovídá tvaru sensors/{name}/{type}")
	ErrMalformedPayload = errors.New("payload není validní JSON objekt")
	ErrMissingValue     = errors.New("payload neobsahuje číselné pole 'value'")
)

// ReadingStore je vše, co ingestor potřebuje od úložiště.
// Díky rozhraní se dá v testech podstrčit in-memory fake místo Postgresu.
type ReadingStore interface {
	SaveReading(ctx context.Context, reading *Reading) error
}

// DecodeMessage zapouzdřuje logiku zpracování jedné zprávy.
// Vstupy: topic a raw payload. Výstup: kandidát na Reading (bez ID) nebo chyba.
// Funkce je bezstavová - zpracování zprávy N nijak nezávisí na zprávě N-1.
func DecodeMessage(topic string, payload []byte) (*Reading, error) {

	// KROK 1: Parsování topicu
	// Formát: sensors/SENSOR_NAME/SENSOR_TYPE
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != "sensors" || parts[1] == "" || parts[2] == "" {
		return nil, fmt.Errorf("%w: %q", ErrMalformedTopic, topic)
	}
	sensorName := parts[1]
	sensorType := parts[2] // "temperature", "humidity", nebo cokoliv nového

	// KROK 2: Parsování payloadu
	// Dekódujeme do mapy, ne do pevné struktury - potřebujeme rozlišit
	// "value chybí" od "payload není JSON".
	var fields map[string]any
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedPayload, err)
	}

	// KROK 3: Validace
	// 'value' je povinné a musí být číslo. Rozsah nekontrolujeme - i fyzikální
	// nesmysl se uloží, posouzení validity je na konzumentech dat.
	value, ok := fields["value"].(float64)
	if !ok {
		return nil, ErrMissingValue
	}

	// 'unit' je volitelný string, default prázdný.
	unit, _ := fields["unit"].(string)

	// 'timestamp' je volitelný - pokud ho publisher poslal, bereme ho verbatim
	// (i prázdný string, žádná validace formátu). Jen když pole úplně chybí,
	// doplníme aktuální čas dekódování.
	timestamp, ok := fields["timestamp"].(string)
	if !ok {
		timestamp = time.Now().UTC().Format(time.RFC3339)
	}

	return &Reading{
		SensorName: sensorName,
		SensorType: sensorType,
		Value:      value,
		Unit:       unit,
		Timestamp:  timestamp,
	}, nil
}

// Ingestor je lepidlo mezi MQTT doručením a úložištěm.
// Drží čítače zpracovaných zpráv a izoluje chyby - jedna vadná zpráva
// NIKDY nesmí shodit celou pipeline.
type Ingestor struct {
	store  ReadingStore
	logger *slog.Logger

	// Čítače jsou atomické - MQTT klient může volat handler z více goroutin
	// a při shutdownu je čte main.
	stored  atomic.Int64
	dropped atomic.Int64
}

func NewIngestor(store ReadingStore, logger *slog.Logger) *Ingestor {
	return &Ingestor{store: store, logger: logger}
}

// Stored vrací počet úspěšně uložených měření.
func (i *Ingestor) Stored() int64 { return i.stored.Load() }

// Dropped vrací počet zahozených zpráv (vadný topic/payload nebo chyba DB).
func (i *Ingestor) Dropped() int64 { return i.dropped.Load() }

// HandleMessage zpracuje jednu příchozí zprávu.
// Nikdy nevrací chybu nahoru do MQTT vrstvy - transport musí běžet dál
// bez ohledu na kvalitu payloadů.
func (i *Ingestor) HandleMessage(ctx context.Context, topic string, payload []byte) {

	// A. Dekódování + validace
	reading, err := DecodeMessage(topic, payload)
	if err != nil {
		// Vadná zpráva: zalogujeme důvod a zahodíme. Žádné retry - redelivery
		// řeší QoS transportu, ne my.
		i.dropped.Add(1)
		i.logger.Warn("Zpráva odmítnuta", "topic", topic, "důvod", err)
		return
	}

	// B. Uložení
	if err := i.store.SaveReading(ctx, reading); err != nil {
		// Neúspěšný insert = měření je ztraceno (retry fronta je mimo scope).
		i.dropped.Add(1)
		i.logger.Warn("Chyba při ukládání měření", "topic", topic, "error", err)
		return
	}

	// C. Úspěch
	// Debug level - v Info by každá zpráva zahltila logy (detail je vidět
	// s LOG_LEVEL=debug, souhrn dodává summarizer).
	n := i.stored.Add(1)
	i.logger.Debug("Měření uloženo",
		"n", n,
		"sensor", reading.SensorName,
		"type", reading.SensorType,
		"value", reading.Value,
		"unit", reading.Unit,
	)
}
