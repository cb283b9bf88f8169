package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const serviceName = "sensor-recorder"

func main() {
	cfg := LoadConfig()

	// Bootstrap logger jen na stdout. MQTT klient musí být připojen DŘÍVE,
	// než můžeme logovat i do MQTT (problém slepice-vejce).
	// MQTT handlery si berou logger přes slog.Default() - výměna za
	// multi-writer běží souběžně s prvním OnConnect callbackem a SetDefault
	// je atomický, obyčejná sdílená proměnná by tu byla data race.
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)})))

	// První OnConnect může předběhnout zbytek mainu. Subscribe proto čeká,
	// dokud neexistuje ingestor a jeho message handler.
	wiringReady := make(chan struct{})
	var messageHandler mqtt.MessageHandler

	// Výsledek prvního subscribe kola - při startu je selhání fatální,
	// při pozdějších reconnectech už jen warning v logu.
	firstSubscribe := make(chan error, 1)
	var firstSubscribeOnce sync.Once

	// --- MQTT KLIENT ---
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.MQTTBroker)
	opts.SetClientID(cfg.MQTTClientID)

	// Subscriptions zakládáme v OnConnect, ne jednorázově v mainu.
	// Obnoví se tak i po reconnectu proti brokeru, který session nedržel
	// (jinak by klient po výpadku brokeru tiše nedostával žádné zprávy).
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		log := slog.Default()
		log.Info("Připojeno k MQTT", "broker", cfg.MQTTBroker)

		<-wiringReady
		err := subscribeAll(c, cfg, log, messageHandler)
		firstSubscribeOnce.Do(func() { firstSubscribe <- err })
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		// Paho se sám pokusí o reconnect; po něm OnConnect obnoví subscriptions.
		slog.Default().Warn("Spojení s MQTT ztraceno", "error", err)
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		// Bez transportu nemá služba co dělat -> Crash.
		// Docker kontejner se restartuje a zkusí to znovu.
		slog.Default().Error("Fatal MQTT Error", "broker", cfg.MQTTBroker, "error", token.Error())
		os.Exit(1)
	}

	// --- SETUP LOGGERU ---
	// MultiWriter: každý log řádek jde na stdout I do topicu logs/sensor-recorder.
	mqttWriter := NewMqttLogWriter(client, serviceName)
	multi := io.MultiWriter(os.Stdout, mqttWriter)
	logger := slog.New(slog.NewJSONHandler(multi, &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	logger.Info("Spouštím službu Sensor Recorder", "config", cfg)

	// --- ÚLOŽIŠTĚ ---
	repo, err := NewRepository(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("Kritická chyba připojení k databázím", "error", err)
		os.Exit(1)
	}

	// Schéma zakládáme při každém startu - IF NOT EXISTS, takže i proti
	// naplněné databázi je to bezpečné.
	if err := repo.InitSchema(context.Background()); err != nil {
		logger.Error("Kritická chyba: Nepodařilo se založit schéma", "error", err)
		os.Exit(1)
	}
	logger.Info("Databáze připojeny a schéma připraveno")

	ingestor := NewIngestor(repo, logger)

	// --- SUMMARIZER (běží na pozadí) ---
	// Vytváříme context, který zrušíme při shutdownu aplikace.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	summarizer := NewSummarizer(repo, logger, cfg.SummaryInterval)
	go summarizer.Run(ctx)

	// Healthcheck server (pro Docker/K8s)
	go startHealthServer(cfg.HTTPPort, logger)

	// --- HLAVNÍ LOOP ZPRACOVÁNÍ ZPRÁV ---
	// Handler volá paho ze své doručovací goroutiny - zpracování musí být
	// rychlé, jinak se hromadí backlog.
	messageHandler = func(_ mqtt.Client, msg mqtt.Message) {
		// Context s timeoutem, aby DB operace nevisela věčně.
		saveCtx, cancelSave := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelSave()

		ingestor.HandleMessage(saveCtx, msg.Topic(), msg.Payload())
	}
	// Zápis handleru je hotový, OnConnect smí subscribovat (close = happens-before).
	close(wiringReady)

	if err := <-firstSubscribe; err != nil {
		logger.Error("Kritická chyba: Subscribe při startu selhal", "error", err)
		os.Exit(1)
	}

	logger.Info("Služba běží, čekám na data ze senzorů")

	// --- GRACEFUL SHUTDOWN ---
	// Blokujeme hlavní vlákno, dokud nepřijde SIGINT (Ctrl+C) nebo SIGTERM (Docker stop).
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Ukončuji službu...")

	// 1. Přestat přijímat nové zprávy
	if token := client.Unsubscribe(cfg.InputTopics...); token.Wait() && token.Error() != nil {
		logger.Warn("Unsubscribe selhal", "error", token.Error())
	}
	// 2. Zastavit summarizer
	cancel()
	// 3. Nechat doběhnout rozpracované zprávy (250ms grace) a odpojit se
	client.Disconnect(250)
	// 4. Zavřít úložiště a vypsat finální čítače
	repo.Close()
	logger.Info("Shutdown dokončen",
		"messages_stored", ingestor.Stored(),
		"messages_dropped", ingestor.Dropped(),
	)
}

// subscribeAll založí odběr všech nakonfigurovaných topiců.
// Loguje výsledek za každý topic zvlášť; na první chybě končí.
func subscribeAll(client mqtt.Client, cfg Config, logger *slog.Logger, handler mqtt.MessageHandler) error {
	for _, topic := range cfg.InputTopics {
		if token := client.Subscribe(topic, cfg.MQTTQoS, handler); token.Wait() && token.Error() != nil {
			logger.Error("Subscribe selhal", "topic", topic, "error", token.Error())
			return token.Error()
		}
		logger.Info("Poslouchám na topicu", "topic", topic, "qos", cfg.MQTTQoS)
	}
	return nil
}

// startHealthServer spustí jednoduchý HTTP endpoint.
func startHealthServer(port string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	logger.Info("Health server běží", "port", port)
	if err := http.ListenAndServe(":"+port, mux); err != nil {
		logger.Error("Health server spadl", "error", err)
	}
}

// parseLogLevel převede hodnotu z ENV na slog úroveň. Neznámá hodnota = info.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
