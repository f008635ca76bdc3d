package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"growbox/internal/handlers"
	"growbox/internal/hardware"
	"growbox/internal/logger"
	"growbox/internal/notify"
	"growbox/internal/repository"
	"growbox/internal/server"
	"growbox/internal/service"

	"github.com/spf13/viper"
)

func main() {
	// init logger
	log := logger.Get(logger.InfoLevel)

	// load config.yml
	if err := loadConfig(); err != nil {
		log.Fatalw("error reading config", "err", err)
	}

	// open DB
	db, err := openDB(log)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			log.Fatalw("failed to close sqlite", "err", cerr)
		}
	}()

	// hardware clients
	relay, arduino, ir := buildHardware(log)

	// mqtt is optional: without a broker the controllers run silent
	notifier := buildNotifier(log)
	defer notifier.Close()

	// every relay flip goes out on the bus, deduplicated at the source
	relay.OnStateChange(func(channel int, state bool) {
		notifier.Emit("relay_change", map[string]any{"channel": channel, "state": state})
	})

	// wire dependencies
	repos := repository.NewRepository(db)
	services := service.NewService(service.Deps{
		Repos:    repos,
		Gateway:  relay,
		Relay:    relay,
		Arduino:  arduino,
		IR:       ir,
		Notifier: notifier,
		Log:      log,
	})
	apiHandler := handlers.NewHandler(services, log)

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// control loop plus the sensor link keepalive
	go services.Scheduler.Run(ctx, schedulerTick())
	go arduino.RunReconnect(ctx)

	// start HTTP server
	srv := &server.Server{}
	runHTTPServer(srv, viper.GetString("port"), apiHandler, log)

	// graceful shutdown
	waitForShutdown(cancel, srv, log)
}

func loadConfig() error {
	viper.AddConfigPath("configs") // configs/config.yml
	viper.SetConfigName("config")
	return viper.ReadInConfig()
}

// openDB initializes the SQLite database using configuration.
func openDB(log *logger.Logger) (*sql.DB, error) {
	dbPath := viper.GetString("db.path")
	if dbPath == "" {
		log.Infow("db.path not set in config; using default file", "default", "growbox.db")
		dbPath = "growbox.db"
	}
	return repository.InitDB(dbPath)
}

// buildHardware constructs the relay board, sensor endpoint and IR bridge
// clients from configuration.
func buildHardware(log *logger.Logger) (*hardware.ModbusRelay, *hardware.ArduinoClient, *hardware.IRBridge) {
	relay := hardware.NewModbusRelay(hardware.ModbusConfig{
		Host:       viper.GetString("relay.host"),
		Port:       viper.GetInt("relay.port"),
		UnitID:     byte(viper.GetInt("relay.unit_id")),
		Channels:   viper.GetInt("relay.channels"),
		Simulation: viper.GetBool("relay.simulation"),
	}, log)

	arduino := hardware.NewArduinoClient(hardware.ArduinoConfig{
		Host: viper.GetString("arduino.host"),
		Port: viper.GetInt("arduino.port"),
	}, nil, log)

	ir := hardware.NewIRBridge(hardware.IRBridgeConfig{
		Host: viper.GetString("esp32.host"),
		Port: viper.GetInt("esp32.port"),
	}, log)

	return relay, arduino, ir
}

// buildNotifier connects to the MQTT broker, falling back to a no-op
// notifier when no broker is configured or reachable.
func buildNotifier(log *logger.Logger) notify.Notifier {
	broker := viper.GetString("mqtt.broker")
	if broker == "" {
		return notify.Nop{}
	}
	n, err := notify.NewMQTT(broker, viper.GetString("mqtt.client_id"), viper.GetString("mqtt.prefix"), log)
	if err != nil {
		log.Warnw("mqtt broker unreachable, notifications disabled", "broker", broker, "err", err)
		return notify.Nop{}
	}
	return n
}

// schedulerTick reads the control loop interval with the built-in default.
func schedulerTick() time.Duration {
	if tick := viper.GetDuration("scheduler.tick"); tick > 0 {
		return tick
	}
	return service.DefaultTick
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if port == "" {
			port = "8080"
		}
		if err := srv.Run(port, handler.InitRoutes()); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	// stop background goroutines
	cancel()

	// allow in-flight requests to complete
	ctx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalw("server forced to shutdown", "err", err)
	}
}
