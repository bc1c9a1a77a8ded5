package main

import (
	"fmt"
	"time"

	"github.com/aldas/go-cyphal-can"
	"github.com/aldas/go-cyphal-can/slcan"
	"github.com/aldas/go-cyphal-can/socketcan"
	"github.com/tarm/serial"
	"go.uber.org/zap"
)

func openDevice(cfg deviceConfig, logger *zap.Logger) (cyphal.Device, error) {
	var device cyphal.Device
	switch cfg.Type {
	case "socketcan":
		device = socketcan.NewDevice(socketcan.DeviceConfig{
			InterfaceName:      cfg.Name,
			FD:                 cfg.FD,
			BitRateSwitch:      cfg.BitRateSwitch,
			ReceiveDataTimeout: cfg.ReceiveDataTimeout,
		})
	case "slcan":
		port, err := serial.OpenPort(&serial.Config{
			Name: cfg.Name,
			Baud: cfg.Baud,
			// ReadTimeout is duration that Read call is allowed to block. Device has different timeout for situation when
			// there is no activity on bus. Can not be smaller than 100ms
			ReadTimeout: 100 * time.Millisecond,
			Size:        8,
		})
		if err != nil {
			return nil, fmt.Errorf("could not open serial port: %w", err)
		}
		device = slcan.NewDevice(port, slcan.Config{
			Bitrate:                 cfg.Bitrate,
			ReceiveDataTimeout:      cfg.ReceiveDataTimeout,
			DebugLogRawMessageBytes: cfg.LogFrames,
			Logger:                  logger.Named("slcan"),
		})
	default:
		return nil, fmt.Errorf("unknown device type: %v", cfg.Type)
	}

	if cfg.LogFrames {
		device = cyphal.NewLoggedDevice(device, logger.Named("device"), cyphal.LogAll)
	}
	return device, nil
}
