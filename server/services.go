package server

import (
	"scriptrelay/pkg/config"
	"scriptrelay/pkg/logger"
	"scriptrelay/pkg/storage"
	"scriptrelay/relay"

	"github.com/jonboulle/clockwork"
)

// Services holds all major application services for dependency injection
type Services struct {
	Config      *config.RelayConfig
	Logger      *logger.Logger
	Store       storage.Store
	Registry    *relay.Registry
	Broadcaster *relay.Broadcaster
	Monitor     *relay.Monitor
	Gateway     *relay.Gateway
}

// NewServices creates and initializes all services
func NewServices(cfg *config.RelayConfig) (*Services, error) {
	log := logger.Get()

	log.InfoWith("initializing services", "config", cfg.String())

	store, err := storage.NewStore(cfg.Database)
	if err != nil {
		log.ErrorWithErr("failed to initialize dispatch log storage", err)
		return nil, err
	}

	clock := clockwork.NewRealClock()
	registry := relay.NewRegistry(clock, log)
	broadcaster := relay.NewBroadcaster(registry, log)
	monitor := relay.NewMonitor(registry, clock, cfg.Heartbeat.PingInterval(), cfg.Heartbeat.PongTimeout(), log)
	gateway := relay.NewGateway(registry, log)

	log.InfoWith("services initialized successfully")

	return &Services{
		Config:      cfg,
		Logger:      log,
		Store:       store,
		Registry:    registry,
		Broadcaster: broadcaster,
		Monitor:     monitor,
		Gateway:     gateway,
	}, nil
}
