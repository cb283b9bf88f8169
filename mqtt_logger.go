package main

import (
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MqttLogWriter implementuje rozhraní io.Writer.
// Vše, co se do něj zapíše, se zrcadlí do MQTT topicu logs/{service}.
// Díky tomu jdou logy všech služeb sbírat přes broker bez agenta na hostu.
type MqttLogWriter struct {
	client mqtt.Client
	topic  string
}

func NewMqttLogWriter(client mqtt.Client, serviceName string) *MqttLogWriter {
	return &MqttLogWriter{
		client: client,
		topic:  fmt.Sprintf("logs/%s", serviceName),
	}
}

// Write je metoda vyžadovaná rozhraním io.Writer.
// slog ji zavolá pokaždé, když chce něco zalogovat.
func (w *MqttLogWriter) Write(p []byte) (n int, err error) {
	// Payload musíme zkopírovat, protože 'p' se po návratu může změnit.
	payload := make([]byte, len(p))
	copy(payload, p)

	// Fire-and-forget: na token NEčekáme, aby logování nezpomalovalo
	// zpracování zpráv. Ztracený log řádek je přijatelná cena.
	w.client.Publish(w.topic, 0, false, payload)

	return len(p), nil
}
