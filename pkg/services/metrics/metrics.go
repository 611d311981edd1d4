// Package metrics provides the Prometheus and Pprof monitoring services.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/pai-dev/pai-go/pkg/config"
)

// Service serves metrics over one or more HTTP endpoints.
type Service struct {
	http        []*http.Server
	config      config.BasicService
	log         *zap.Logger
	serviceType string
	started     bool
}

// NewService configures a service of the given type with the handler
// attached to every configured address.
func NewService(serviceType string, handler http.Handler, cfg config.BasicService, log *zap.Logger) *Service {
	var servers = make([]*http.Server, len(cfg.Addresses))
	for i, addr := range cfg.Addresses {
		servers[i] = &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		}
	}
	return &Service{
		http:        servers,
		config:      cfg,
		serviceType: serviceType,
		log:         log.With(zap.String("service", serviceType)),
	}
}

// Start runs the service. Fatal listen errors are returned, everything
// later is logged only.
func (ms *Service) Start() error {
	if ms == nil || !ms.config.Enabled {
		return nil
	}
	ms.log.Info("service is running")
	for _, srv := range ms.http {
		ln, err := newListener(srv.Addr)
		if err != nil {
			return err
		}
		srv.Addr = ln.Addr().String()
		go func(srv *http.Server) {
			err := srv.Serve(ln)
			if !errors.Is(err, http.ErrServerClosed) {
				ms.log.Error("failed to serve", zap.Error(err))
			}
		}(srv)
	}
	ms.started = true
	return nil
}

// ShutDown stops the service.
func (ms *Service) ShutDown() {
	if ms == nil || !ms.started {
		return
	}
	ms.log.Info("shutting down service")
	for _, srv := range ms.http {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := srv.Shutdown(ctx)
		cancel()
		if err != nil {
			ms.log.Error("can't shut service down", zap.String("endpoint", srv.Addr), zap.Error(err))
		}
	}
	ms.started = false
}
