package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mastercactapus/wellrig/config"
	"github.com/mastercactapus/wellrig/degas"
	"github.com/mastercactapus/wellrig/device"
	"github.com/mastercactapus/wellrig/dosing"
	"github.com/mastercactapus/wellrig/rig"
	"github.com/mastercactapus/wellrig/spjs"
	"github.com/mastercactapus/wellrig/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the rig HTTP control server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return serve(cfg)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// bridges shares one SPJS connection per URL.
type bridges struct {
	log   *slog.Logger
	conns map[string]*spjs.SPJS
}

func (b *bridges) port(cfg config.PortConfig) device.Port {
	if cfg.Transport != config.TransportSPJS {
		return device.NewSerial(device.SerialConfig{Name: cfg.Port, Baud: cfg.Baud, ReadTimeout: cfg.ReadTimeout})
	}
	sp := b.conns[cfg.SPJSURL]
	if sp == nil {
		sp = spjs.NewSPJS(cfg.SPJSURL, 0, b.log)
		b.conns[cfg.SPJSURL] = sp
	}
	return spjs.NewPort(sp, cfg.Port, cfg.Baud)
}

func (b *bridges) Close() {
	for _, sp := range b.conns {
		sp.Close()
	}
}

func degasSteps(cfg []config.DegasStep) []degas.Step {
	phases := []degas.Phase{degas.PhaseHeating, degas.PhaseRampDown, degas.PhaseRampUp}
	steps := make([]degas.Step, len(cfg))
	for i, s := range cfg {
		steps[i] = degas.Step{Phase: phases[i], SetPoint: s.SetPoint, Hold: s.Hold}
	}
	return steps
}

// sinks builds the telemetry fanout. Optional network sinks that cannot
// be reached are logged and skipped.
func sinks(cfg *config.Config, log *slog.Logger, reg prometheus.Registerer) (*telemetry.Fanout, *telemetry.SSE, func(), error) {
	metrics, err := telemetry.NewMetrics(reg)
	if err != nil {
		return nil, nil, nil, err
	}
	events := telemetry.NewSSE(log)
	fan := telemetry.NewFanout(events, metrics)
	closers := []func(){events.Close}

	if cfg.InfluxDB.Enabled {
		ix, err := telemetry.DialInflux(context.Background(), telemetry.InfluxConfig{
			URL:           cfg.InfluxDB.URL,
			Token:         cfg.InfluxDB.Token,
			Org:           cfg.InfluxDB.Org,
			Bucket:        cfg.InfluxDB.Bucket,
			BatchSize:     cfg.InfluxDB.BatchSize,
			FlushInterval: cfg.InfluxDB.FlushInterval,
		}, log)
		if err != nil {
			log.Warn("influxdb disabled", "error", err)
		} else {
			fan.Add(ix)
			closers = append(closers, ix.Close)
		}
	}
	if cfg.MQTT.Enabled {
		mq, err := telemetry.DialMQTT(telemetry.MQTTConfig{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
			Prefix:   cfg.MQTT.Prefix,
			QoS:      cfg.MQTT.QoS,
		}, log)
		if err != nil {
			log.Warn("mqtt disabled", "error", err)
		} else {
			fan.Add(mq)
			closers = append(closers, mq.Close)
		}
	}

	return fan, events, func() {
		for _, c := range closers {
			c()
		}
	}, nil
}

func newRig(cfg *config.Config, log *slog.Logger, sink telemetry.Sink, br *bridges) *rig.Controller {
	return rig.New(rig.Options{
		Camera:        cameraSystem(cfg.Camera),
		DosingPort:    br.port(cfg.Dosing.PortConfig),
		DegasPort:     br.port(cfg.Degas.PortConfig),
		Sink:          sink,
		Logger:        log,
		DataDir:       cfg.DataDir,
		FrameInterval: cfg.Camera.FrameInterval,
		Emissivity:    cfg.Camera.Emissivity,
		Distance:      cfg.Camera.Distance,
		WellsX:        cfg.Plate.WellsX,
		WellsY:        cfg.Plate.WellsY,
		Dosing: rig.DosingOptions{
			PulseCommand: cfg.Dosing.PulseCommand,
			ActiveStatus: cfg.Dosing.ActiveStatus,
			ReadTimeout:  cfg.Dosing.ReadTimeout,
			Session: dosing.SessionConfig{
				PollInterval: cfg.Dosing.PollInterval,
				WarmUp:       cfg.Dosing.WarmUp,
				Fallback:     cfg.Dosing.Fallback,
			},
			DefaultCycles: cfg.Dosing.DefaultCycles,
			RawLog:        cfg.Dosing.RawLog,
		},
		Degas: rig.DegasOptions{
			Steps:      degasSteps(cfg.Degas.Steps),
			Slice:      cfg.Degas.Slice,
			AckTimeout: cfg.Degas.ReadTimeout,
		},
	})
}

func serve(cfg *config.Config) error {
	log := newLogger(os.Stderr, cfg.Logging)
	slog.SetDefault(log)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	fan, events, closeSinks, err := sinks(cfg, log, reg)
	if err != nil {
		return err
	}
	defer closeSinks()

	br := &bridges{log: log, conns: make(map[string]*spjs.SPJS)}
	defer br.Close()

	r := newRig(cfg, log, fan, br)
	defer r.Close()

	srv := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: newAPI(r, apiOptions{DataDir: cfg.DataDir, Events: events, Gatherer: reg, Logger: log, Radius: cfg.Plate.Radius, Cycles: cfg.Dosing.DefaultCycles}),
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", srv.Addr, "data_dir", cfg.DataDir)
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case sig := <-shutdown:
		log.Info("shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			srv.Close()
		}
	}
	return nil
}
