package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/aldas/go-cyphal-can"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "path to YAML configuration file")
	deviceName := flag.String("device", "", "SocketCAN interface or serial port path (overrides config device.name)")
	deviceType := flag.String("device-type", "", "device type: socketcan, slcan (overrides config device.type)")
	mode := flag.String("mode", "dump", "what to do: dump, heartbeat, call, serve")
	nodeID := flag.Int("node-id", -1, "local node id, -1 for anonymous node (overrides config nodeID)")
	verbose := flag.Bool("v", false, "debug logging (overrides config log.level)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "device":
			cfg.Device.Name = *deviceName
		case "device-type":
			cfg.Device.Type = *deviceType
		case "node-id":
			cfg.NodeID = *nodeID
		case "v":
			if *verbose {
				cfg.Log.Level = "debug"
			}
		}
	})
	if err := cfg.validate(); err != nil {
		log.Fatal(err)
	}

	logger, closeLog, err := newLogger(cfg.Log)
	if err != nil {
		log.Fatal(err)
	}
	defer closeLog()
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, *mode, logger); err != nil {
		logger.Error("cyphalctl failed", zap.String("mode", *mode), zap.Error(err))
		logger.Sync()
		closeLog()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config, mode string, logger *zap.Logger) error {
	switch mode {
	case "dump", "heartbeat", "call", "serve":
	default:
		return fmt.Errorf("unknown mode: %v", mode)
	}

	device, err := openDevice(cfg.Device, logger)
	if err != nil {
		return err
	}
	logger.Info("initializing device", zap.String("type", cfg.Device.Type), zap.String("name", cfg.Device.Name))
	if err := device.Initialize(); err != nil {
		return fmt.Errorf("could not initialize device: %w", err)
	}
	defer device.Close()

	transport := cyphal.NewTransport(device, cyphal.Config{
		NodeID:            cfg.nodeID(),
		MTU:               cyphal.MTU(cfg.MTU),
		TransferIDTimeout: cfg.TransferIDTimeout,
		Logger:            logger.Named("transport"),
	})
	logger.Info("starting", zap.String("mode", mode), zap.Int("node_id", cfg.NodeID), zap.Int("mtu", cfg.MTU))

	switch mode {
	case "heartbeat":
		return runHeartbeat(ctx, transport, cfg.Heartbeat, logger)
	case "call":
		return runCall(ctx, transport, cfg.Call, os.Stdout)
	case "serve":
		return runServe(ctx, transport, cfg.Serve, logger)
	default:
		return runDump(ctx, transport, os.Stdout)
	}
}
