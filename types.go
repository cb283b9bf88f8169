package main

import "time"

// Reading je jedno měření ze senzoru tak, jak ho ukládáme do DB.
// sensor_name a sensor_type pochází z MQTT topicu (sensors/{name}/{type}),
// zbytek z JSON payloadu.
type Reading struct {
	// ID přiděluje databáze (BIGSERIAL). Nula = ještě neuloženo.
	ID int64

	SensorName string
	// SensorType je záměrně obyčejný string, ne enum.
	// Dnes chodí "temperature" a "humidity", ale nový druh měření na stejném
	// topic patternu musí projít bez změny kódu.
	SensorType string

	Value float64
	Unit  string

	// Timestamp je čas měření tak, jak ho tvrdí publisher (ISO-8601 string).
	// Neparsujeme ho - ukládáme verbatim.
	Timestamp string

	// ReceivedAt přiděluje databáze při insertu (náš čas, ne čas publishera).
	ReceivedAt time.Time
}

// LatestReading je výsledek dotazu "poslední hodnota pro každý (senzor, typ)".
type LatestReading struct {
	SensorName string
	SensorType string
	Value      float64
	Unit       string
	Timestamp  string
}

// SummaryRow je jedna řádka agregační statistiky pro dvojici (senzor, typ).
type SummaryRow struct {
	SensorName string
	SensorType string
	Count      int64
	Min        float64
	Max        float64
	Avg        float64
}
