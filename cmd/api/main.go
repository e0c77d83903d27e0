package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	adactor "github.com/berfenger/sdibms2mqtt/internal/adapter/actor"
	"github.com/berfenger/sdibms2mqtt/internal/config"
	"github.com/berfenger/sdibms2mqtt/internal/core/actor"
	"github.com/berfenger/sdibms2mqtt/internal/core/domain"
	"github.com/berfenger/sdibms2mqtt/internal/core/port"
	"github.com/berfenger/sdibms2mqtt/internal/core/service"
	"github.com/berfenger/sdibms2mqtt/internal/core/store"
	"github.com/berfenger/sdibms2mqtt/internal/job"
	"github.com/berfenger/sdibms2mqtt/internal/server"
	"github.com/berfenger/sdibms2mqtt/internal/util/actorutil"
	"github.com/berfenger/sdibms2mqtt/pkg/sdi_can"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/reugn/go-quartz/quartz"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func gracefulShutdown(apiServer *http.Server, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	log.Println("shutting down gracefully, press Ctrl+C again to force")

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown with error: %v", err)
	}

	log.Println("Server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

func main() {

	// load and print config
	cfg, err := initConfig()
	if err != nil {
		slog.Error("config errors", "error", err)
		return
	}
	safePrintConfig(*cfg)

	// zap logger
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)

	logger := zap.Must(zapCfg.Build())

	// init actor system
	as := actorutil.NewActorSystemWithZapLogger(logger)
	ctx := as.Root

	defer logger.Sync()

	sourceStore := store.NewSourceStore(cfg.SourceProfiles(), cfg.Aggregation.StaleAfter())
	logic := &service.DefaultAggregationLogic{
		AggregationLimits: cfg.Aggregation.Limits(),
		Logger:            logger.With(zap.String("service", "aggregation")),
	}

	// optional frame capture
	var recorder port.FrameRecorder
	if cfg.CAN.CaptureFile != "" {
		captureRecorder, err := sdi_can.CreateCaptureRecorder(cfg.CAN.CaptureFile)
		if err != nil {
			panic(err)
		}
		defer captureRecorder.Close()
		recorder = captureRecorder
		logger.Info("capturing CAN frames", zap.String("file", cfg.CAN.CaptureFile))
	}

	ingestor := &service.FrameIngestor{
		Registry: sdi_can.SamsungSDIRegistry(),
		Store:    sourceStore,
		Recorder: recorder,
		Logger:   logger.With(zap.String("service", "ingest")),
	}

	// stale source eviction
	sched, err := quartz.NewStdScheduler()
	if err != nil {
		panic(err)
	}
	schedCtx, cancelSched := context.WithCancel(context.Background())
	sched.Start(schedCtx)
	if err := job.ScheduleEviction(sched, cfg.Eviction, sourceStore, logger.With(zap.String("job", job.JOB_KEY_EVICTION))); err != nil {
		panic(err)
	}

	props := pactor.PropsFromProducer(func() pactor.Actor {
		return actor.NewMasterOfPuppetsActor(*cfg, sourceStore, logic,
			canBusActorProvider(cfg, ingestor, logger), mqttActorProvider(cfg, logger), logger)
	})
	pid, err := ctx.SpawnNamed(props, domain.ACTOR_ID_MASTER)
	if err != nil {
		return
	}

	server := server.NewServer(*cfg, ctx, pid)
	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(server, done)

	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		panic(fmt.Sprintf("http server error: %s", err))
	}

	// Wait for the graceful shutdown to complete
	<-done
	log.Println("Graceful shutdown complete.")

	sched.Stop()
	cancelSched()
	ctx.Stop(pid)
	as.Shutdown()
}

func initConfig() (*config.Config, error) {

	// alias PORT => SDIBMS_PORT
	if port := os.Getenv("PORT"); port != "" {
		os.Setenv("SDIBMS_PORT", port)
	}

	setConfigDefaults()

	viper.SetEnvPrefix("sdibms")
	viper.AutomaticEnv()

	// if defined, try to load config from yaml file
	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			slog.Info("Using config", "file", cfgFile)
			viper.SetConfigFile(cfgFile)

			err = viper.ReadInConfig()
			if err != nil {
				slog.Error("Error reading config file", "error", err)
			}
		}
	}

	var cfg config.Config

	err := viper.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	// parse log level
	switch viper.GetString("log_level") {
	case "trace":
		cfg.LogLevel = zap.DebugLevel
	case "debug":
		cfg.LogLevel = zap.DebugLevel
	case "info":
		cfg.LogLevel = zap.InfoLevel
	case "error":
		cfg.LogLevel = zap.ErrorLevel
	case "warn":
		cfg.LogLevel = zap.WarnLevel
	case "fatal":
		cfg.LogLevel = zap.FatalLevel
	default:
		cfg.LogLevel = zap.InfoLevel
	}

	// check and fix base topic
	baseTopic, err := config.CheckMQTTTopic(cfg.MQTT.BaseTopic)
	if err != nil {
		return nil, errors.New("invalid base topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.BaseTopic = baseTopic

	// check and fix homeassistant discovery topic
	hadBaseTopic, err := config.CheckMQTTTopic(cfg.MQTT.HADiscoveryTopic)
	if err != nil {
		return nil, errors.New("invalid homeassistant discovery topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.HADiscoveryTopic = hadBaseTopic

	// check bounds
	if err := config.Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func canBusActorProvider(cfg *config.Config, ingestor port.FrameIngestor, logger *zap.Logger) actor.CANBusActorProvider {
	return func(source config.SourceConfig) *adactor.CANBusActor {
		return adactor.NewCANBusActor(source.Id, cfg.CAN, frameReaderProvider(source), ingestor, logger)
	}
}

func frameReaderProvider(source config.SourceConfig) adactor.FrameReaderProvider {
	if source.ReplayFile != "" {
		return func() (sdi_can.FrameReader, error) {
			reader, err := sdi_can.CreateCaptureReader(source.ReplayFile, source.Id, source.ReplayLoop)
			if err != nil {
				return nil, err
			}
			return reader, nil
		}
	}
	return func() (sdi_can.FrameReader, error) {
		reader, err := sdi_can.CreateSocketCANReader(source.Interface)
		if err != nil {
			return nil, err
		}
		return reader, nil
	}
}

func mqttActorProvider(cfg *config.Config, logger *zap.Logger) actor.MQTTActorProvider {
	return func(es *eventstream.EventStream) *adactor.MQTTActor {
		return adactor.NewMQTTActor(cfg, es, logger)
	}
}

func setConfigDefaults() {
	viper.SetDefault("log_level", "warn")
	viper.SetDefault("mqtt.port", 1883)
	viper.SetDefault("mqtt.ha_discovery_enable", false)
	viper.SetDefault("mqtt.base_topic", "sdibms")
	viper.SetDefault("mqtt.ha_discovery_topic", "homeassistant")
	viper.SetDefault("can.connected_timeout_millis", 5000)
	viper.SetDefault("can.open_timeout_millis", 3000)
	viper.SetDefault("can.capture_file", "")
	viper.SetDefault("aggregation.interval_millis", 1000)
	viper.SetDefault("aggregation.max_charge_current", 50)
	viper.SetDefault("aggregation.max_discharge_current", 150)
	viper.SetDefault("aggregation.near_full_soc", 99.0)
	viper.SetDefault("aggregation.fallback_charge_current", 30.0)
	viper.SetDefault("aggregation.stale_after_millis", 10000)
	viper.SetDefault("eviction.interval_millis", 60000)
	viper.SetDefault("eviction.evict_after_millis", 300000)
	viper.SetDefault("sources", []map[string]any{
		{"id": "sdi", "interface": "vcan0", "capacity": 4840},
	})
	viper.SetDefault("port", 8080)
}

func safePrintConfig(cfg config.Config) {
	cfg.MQTT.Username = "*redacted*"
	cfg.MQTT.Password = "*redacted*"
	slog.Info("Using", "config", cfg)
}
