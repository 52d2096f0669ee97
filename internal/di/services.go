package di

import (
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/samber/do/v2"

	"github.com/avelinc/edgegate/internal/config"
	"github.com/avelinc/edgegate/internal/gate"
	"github.com/avelinc/edgegate/internal/gateway"
	"github.com/avelinc/edgegate/internal/store"
	"github.com/avelinc/edgegate/internal/watch"
)

// Service wrapper types give each registration a distinct concrete type.

// ConfigService wraps the loaded process configuration.
type ConfigService struct {
	Config *config.Config
}

// LoggerService wraps the zerolog logger.
type LoggerService struct {
	Logger *zerolog.Logger
}

// StoreService wraps the rule store.
type StoreService struct {
	Store *store.Store
}

// WatcherService wraps the document watcher.
type WatcherService struct {
	Watcher *watch.Watcher
}

// GateService wraps the startup gate.
type GateService struct {
	Gate *gate.Gate
}

// HandlerService wraps the assembled HTTP handler.
type HandlerService struct {
	Handler http.Handler
}

// ServerService wraps the HTTP server.
type ServerService struct {
	Server *gateway.Server
}

// NewConfig loads the process configuration, or defaults when no file is
// configured.
func NewConfig(i do.Injector) (*ConfigService, error) {
	path := do.MustInvokeNamed[string](i, ConfigPathKey)

	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return nil, fmt.Errorf("load config from %s: %w", path, err)
	}
	return &ConfigService{Config: cfg}, nil
}

// NewLogger creates the zerolog logger from configuration.
func NewLogger(i do.Injector) (*LoggerService, error) {
	cfgSvc := do.MustInvoke[*ConfigService](i)

	logger, err := gateway.NewLogger(cfgSvc.Config.Logging)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return &LoggerService{Logger: &logger}, nil
}

// NewStore opens the rule store over the canonical document.
func NewStore(i do.Injector) (*StoreService, error) {
	cfg := do.MustInvoke[*ConfigService](i).Config

	st, err := store.Open(cfg.Document.GetPath(), cfg.Document.GetBootstrapPassword())
	if err != nil {
		return nil, fmt.Errorf("open rule store: %w", err)
	}
	return &StoreService{Store: st}, nil
}

// NewWatcher creates the document watcher over the store.
func NewWatcher(i do.Injector) (*WatcherService, error) {
	cfg := do.MustInvoke[*ConfigService](i).Config
	st := do.MustInvoke[*StoreService](i).Store

	w := watch.NewWatcher(st, watch.WithInterval(cfg.Document.GetPollInterval()))
	return &WatcherService{Watcher: w}, nil
}

// NewGate creates the startup gate from configuration.
func NewGate(i do.Injector) (*GateService, error) {
	cfg := do.MustInvoke[*ConfigService](i).Config
	docPath := cfg.Document.GetPath()

	g := gate.New(cfg.Gate.GetMarkerPath(docPath),
		gate.WithProgressPath(cfg.Gate.GetProgressPath(docPath)),
		gate.WithInterval(cfg.Gate.GetInterval()),
		gate.WithTimeout(cfg.Gate.GetTimeout()),
		gate.WithFreshness(cfg.Gate.GetFreshness()),
	)
	return &GateService{Gate: g}, nil
}

// NewHandler assembles the single-port HTTP handler.
func NewHandler(i do.Injector) (*HandlerService, error) {
	st := do.MustInvoke[*StoreService](i).Store
	return &HandlerService{Handler: gateway.SetupRoutes(st)}, nil
}

// NewHTTPServer creates the server over the assembled handler.
func NewHTTPServer(i do.Injector) (*ServerService, error) {
	cfg := do.MustInvoke[*ConfigService](i).Config
	handler := do.MustInvoke[*HandlerService](i).Handler

	srv := gateway.NewServer(cfg.Server.GetListen(), handler, cfg.Server.EnableHTTP2)
	return &ServerService{Server: srv}, nil
}
