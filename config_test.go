package main

import (
	"reflect"
	"testing"
	"time"
)

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("MQTT_BROKER", "tcp://broker.example:1883")
	t.Setenv("INPUT_TOPICS", "sensors/+/temperature, sensors/+/pressure")
	t.Setenv("MQTT_QOS", "1")
	t.Setenv("SUMMARY_INTERVAL", "30s")

	cfg := LoadConfig()

	if cfg.MQTTBroker != "tcp://broker.example:1883" {
		t.Errorf("MQTTBroker = %q", cfg.MQTTBroker)
	}
	want := []string{"sensors/+/temperature", "sensors/+/pressure"}
	if !reflect.DeepEqual(cfg.InputTopics, want) {
		t.Errorf("InputTopics = %v, want %v", cfg.InputTopics, want)
	}
	if cfg.MQTTQoS != 1 {
		t.Errorf("MQTTQoS = %d, want 1", cfg.MQTTQoS)
	}
	if cfg.SummaryInterval != 30*time.Second {
		t.Errorf("SummaryInterval = %v, want 30s", cfg.SummaryInterval)
	}
}

func TestGetEnvFallbacks(t *testing.T) {
	// Nevalidní hodnoty v ENV nesmí shodit start - použije se default.
	t.Setenv("MQTT_QOS", "abc")
	t.Setenv("SUMMARY_INTERVAL", "-5s")

	if got := getEnvByte("MQTT_QOS", 0); got != 0 {
		t.Errorf("getEnvByte = %d, want fallback 0", got)
	}
	if got := getEnvDuration("SUMMARY_INTERVAL", time.Minute); got != time.Minute {
		t.Errorf("getEnvDuration = %v, want fallback 1m", got)
	}
}

func TestSplitTopics(t *testing.T) {
	got := splitTopics(" sensors/+/temperature ,, sensors/+/humidity ")
	want := []string{"sensors/+/temperature", "sensors/+/humidity"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("splitTopics = %v, want %v", got, want)
	}
}
