// tokend runs the secure-element control core on a host operating system.
//
// It is headless: all configuration comes from a YAML file naming the
// candidate networks and the counterpart peer. The physical buttons of the
// hardware are mapped to signals, SIGUSR1 for the confirmation button and
// SIGUSR2 for the hard-reset button, and the indicator pins to debug logs.
// Restart relies on the process supervisor relaunching the binary.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/openpgp-hw/tokencore/apdu"
	"github.com/openpgp-hw/tokencore/device"
	"github.com/openpgp-hw/tokencore/fsstore"
	"github.com/openpgp-hw/tokencore/hostnet"
	"github.com/openpgp-hw/tokencore/internal/config"
	"github.com/openpgp-hw/tokencore/logger"
	"github.com/openpgp-hw/tokencore/token"
)

var log logger.Logger

func main() {
	configPath := flag.String("config", "tokend.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("failed to load configuration", "error", err)
	}

	log = logger.NewSlog(logLevel(cfg.LogLevel), false)

	storeDir := cfg.Store
	if storeDir == "" {
		storeDir = "tokend-store"
	}
	store := fsstore.New(storeDir, log)

	stack := hostnet.NewStack(peerPort(cfg), hostnet.WithLogger(log))

	devCfg, err := device.NewConfig(cfg.Candidates(), append(cfg.DeviceOptions(), device.WithLogger(log))...)
	if err != nil {
		log.Fatal("failed to create device config", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dev, err := device.New(ctx, devCfg, device.Collaborators{
		Stack:     stack,
		Processor: unsupportedProcessor(),
		Invalidator: token.InvalidatorFunc(func() {
			log.Debug("security state invalidated")
		}),
		Bringup:   &bringup{store: store, flag: "initialized"},
		Flags:     store,
		Storage:   store,
		Restarter: procRestarter{},
		StatusPin: pin{name: "status"},
		LinkPin:   pin{name: "link"},
	})
	if err != nil {
		log.Fatal("failed to create device", "error", err)
	}

	if err := dev.Run(); err != nil {
		log.Error("device failed to start", "error", err)
		os.Exit(1)
	}

	buttons := make(chan os.Signal, 1)
	signal.Notify(buttons, syscall.SIGUSR1, syscall.SIGUSR2)
	go func() {
		for sig := range buttons {
			switch sig {
			case syscall.SIGUSR1:
				log.Info("confirmation button pressed")
				dev.Confirm()
			case syscall.SIGUSR2:
				log.Info("hard reset button pressed")
				dev.RequestReset()
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	if err := dev.Close(); err != nil {
		log.Error("failed to close device", "error", err)
	}
}

func peerPort(cfg *config.Config) int {
	if cfg.Port != 0 {
		return cfg.Port
	}

	return 5511
}

func logLevel(level string) logger.Level {
	switch level {
	case "debug":
		return logger.DebugLevel
	case "warn":
		return logger.WarnLevel
	case "error":
		return logger.ErrorLevel
	default:
		return logger.InfoLevel
	}
}

// unsupportedProcessor stands in for the security applet, which is linked in
// by hardware ports. It answers every command with SW 6D00 (instruction not
// supported).
func unsupportedProcessor() apdu.Processor {
	return apdu.ProcessorFunc(func(cmd apdu.Command) apdu.Response {
		return apdu.Response{Data: []byte{0x6D, 0x00}}
	})
}

// bringup persists the lifecycle flag; it has no application state of its own
// to restore on a host.
type bringup struct {
	store *fsstore.Store
	flag  string
}

func (b *bringup) Initialize() error {
	log.Info("first-time initialization")
	return b.store.WriteFlag(b.flag, true)
}

func (b *bringup) Restore() error {
	log.Info("restoring persisted state")
	return nil
}

// procRestarter exits the process; a supervisor relaunches it, which is the
// host analogue of a hardware restart.
type procRestarter struct{}

func (procRestarter) Restart() {
	os.Exit(1)
}

// pin logs output transitions instead of driving hardware.
type pin struct {
	name string
}

func (p pin) Set(on bool) {
	log.Debug("pin", "name", p.name, "on", on)
}
