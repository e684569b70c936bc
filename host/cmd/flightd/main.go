// Command flightd serves a flight controller over HTTP and websocket. The
// outputs are driven by a simulated backend or by PCA9685 expanders on a
// Raspberry Pi I2C bus.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"flightemu/config"
	"flightemu/core"
	"flightemu/host/server"
	"flightemu/targets/rpi"
	"flightemu/targets/sim"
)

var (
	configPath = flag.String("config", "", "Board configuration file (JSON)")
	addr       = flag.String("addr", ":8080", "HTTP listen address")
	backend    = flag.String("backend", "", "Override the configured backend (sim or rpi)")
	autoInit   = flag.Bool("init", false, "Initialize the outputs at startup")
	verbose    = flag.Bool("verbose", false, "Log core debug output")
)

func main() {
	flag.Parse()

	if *verbose {
		core.SetDebugWriter(func(s string) { log.Println(s) })
		core.SetDebugEnabled(true)
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("flightd: %v", err)
	}

	fc, closer, err := buildController(cfg)
	if err != nil {
		log.Fatalf("flightd: %v", err)
	}
	defer closer.Close()

	if *autoInit {
		if err := fc.Init(); err != nil {
			log.Fatalf("flightd: init: %v", err)
		}
	}

	srv := server.New(fc)
	httpServer := &http.Server{
		Addr:              *addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("flightd: %s board (%s backend, synced=%v) listening on %s",
			cfg.Name, cfg.Backend, cfg.IsSynced(), *addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("flightd: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("flightd: shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("flightd: http shutdown: %v", err)
	}
	if err := srv.Shutdown(); err != nil {
		log.Printf("flightd: stop outputs: %v", err)
	}
}

func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	if *configPath != "" {
		c, err := config.Load(*configPath)
		if err != nil {
			return nil, err
		}
		cfg = c
	} else if *backend == config.BackendRPi {
		cfg = config.DefaultDualUnitConfig()
	} else {
		cfg = config.DefaultFeatherConfig()
	}

	if *backend != "" {
		cfg.Backend = *backend
	}
	if cfg.Backend == config.BackendRPi {
		defaults := config.DefaultDualUnitConfig().I2C
		if len(cfg.I2C.Addresses) == 0 {
			cfg.I2C.Addresses = defaults.Addresses
		}
		if cfg.I2C.OEPin == nil {
			cfg.I2C.OEPin = defaults.OEPin
		}
	}
	return cfg, nil
}

// buildController wires the configured backend, controller and binding
func buildController(cfg *config.Config) (*core.FlightController, io.Closer, error) {
	board, err := cfg.Board()
	if err != nil {
		return nil, nil, err
	}
	binding, err := cfg.AxisBinding()
	if err != nil {
		return nil, nil, err
	}
	protocol, err := cfg.FlightProtocol()
	if err != nil {
		return nil, nil, err
	}

	var pwm core.PWMBackend
	var closer io.Closer = nopCloser{}
	switch cfg.Backend {
	case config.BackendSim:
		pwm = sim.New()
	case config.BackendRPi:
		b, err := rpi.Open(rpi.Config{
			Bus:        cfg.I2C.Bus,
			Addresses:  cfg.I2C.Addresses,
			OEPin:      *cfg.I2C.OEPin,
			SyncWindow: cfg.Sync.Window,
			SyncScale:  cfg.Sync.Scale,
		})
		if err != nil {
			return nil, nil, err
		}
		pwm, closer = b, b
	default:
		return nil, nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}

	var out core.ChannelOutputBackend
	if cfg.IsSynced() {
		out, err = core.NewSyncedPWMController(pwm, board)
	} else {
		out, err = core.NewPWMController(pwm, board)
	}
	if err != nil {
		closer.Close()
		return nil, nil, err
	}

	fc, err := core.NewFlightControllerWithBinding(protocol, out, binding)
	if err != nil {
		closer.Close()
		return nil, nil, err
	}
	return fc, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
