package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aldas/go-cyphal-can"
	"gopkg.in/yaml.v3"
)

type logConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"maxSizeMB"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
	MaxBackups int    `yaml:"maxBackups"`
	Compress   bool   `yaml:"compress"`
}

type deviceConfig struct {
	// Type is driver type: socketcan or slcan
	Type string `yaml:"type"`
	// Name is SocketCAN interface name (can0) or serial port path (/dev/ttyACM0)
	Name string `yaml:"name"`

	FD            bool `yaml:"fd"`
	BitRateSwitch bool `yaml:"bitRateSwitch"`

	Baud    int `yaml:"baud"`
	Bitrate int `yaml:"bitrate"`

	ReceiveDataTimeout time.Duration `yaml:"receiveDataTimeout"`
	// LogFrames logs every frame read or written at debug level
	LogFrames bool `yaml:"logFrames"`
}

type heartbeatConfig struct {
	Interval time.Duration `yaml:"interval"`
	Priority string        `yaml:"priority"`
	Mode     uint8         `yaml:"mode"`
}

type callConfig struct {
	Destination  int           `yaml:"destination"`
	Service      int           `yaml:"service"`
	Request      string        `yaml:"request"` // hex encoded request payload
	ResponseSize int           `yaml:"responseSize"`
	Timeout      time.Duration `yaml:"timeout"`
	Priority     string        `yaml:"priority"`
}

type serveConfig struct {
	// Service is service id server answers by echoing request payload back
	Service int `yaml:"service"`
}

type config struct {
	// NodeID is local node id. -1 starts anonymous node.
	NodeID            int           `yaml:"nodeID"`
	MTU               int           `yaml:"mtu"`
	TransferIDTimeout time.Duration `yaml:"transferIDTimeout"`

	Device    deviceConfig    `yaml:"device"`
	Log       logConfig       `yaml:"log"`
	Heartbeat heartbeatConfig `yaml:"heartbeat"`
	Call      callConfig      `yaml:"call"`
	Serve     serveConfig     `yaml:"serve"`
}

func defaultConfig() config {
	return config{
		NodeID:            -1,
		MTU:               int(cyphal.MTUClassic),
		TransferIDTimeout: cyphal.DefaultTransferIDTimeout,
		Device: deviceConfig{
			Type:               "socketcan",
			Name:               "can0",
			Baud:               115200,
			ReceiveDataTimeout: 5 * time.Second,
		},
		Log: logConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxAgeDays: 7,
			MaxBackups: 3,
		},
		Heartbeat: heartbeatConfig{
			Interval: time.Second,
			Priority: cyphal.PriorityNominal.String(),
		},
		Call: callConfig{
			Destination: -1,
			Service:     430, // uavcan.node.GetInfo
			Timeout:     time.Second,
			Priority:    cyphal.PriorityNominal.String(),
		},
		Serve: serveConfig{
			Service: 430,
		},
	}
}

// loadConfig reads YAML config file over defaults. Empty path returns defaults.
func loadConfig(path string) (config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("could not decode config file: %w", err)
	}
	if cfg.Log.File != "" && !filepath.IsAbs(cfg.Log.File) {
		cfg.Log.File = filepath.Join(filepath.Dir(path), cfg.Log.File)
	}
	return cfg, nil
}

func (c config) validate() error {
	if c.NodeID < -1 || c.NodeID > cyphal.NodeIDMax {
		return fmt.Errorf("nodeID must be -1 (anonymous) or 0..%d", cyphal.NodeIDMax)
	}
	if c.MTU != int(cyphal.MTUClassic) && c.MTU != int(cyphal.MTUFD) {
		return fmt.Errorf("mtu must be %d or %d", cyphal.MTUClassic, cyphal.MTUFD)
	}
	switch c.Device.Type {
	case "socketcan":
		if c.MTU == int(cyphal.MTUFD) && !c.Device.FD {
			return errors.New("mtu 64 requires device.fd to be enabled")
		}
	case "slcan":
		if c.MTU != int(cyphal.MTUClassic) {
			return errors.New("slcan device supports only classic CAN (mtu 8)")
		}
	default:
		return fmt.Errorf("unknown device type: %v", c.Device.Type)
	}
	if strings.TrimSpace(c.Device.Name) == "" {
		return errors.New("missing device name")
	}
	return nil
}

func (c config) nodeID() cyphal.NodeID {
	if c.NodeID < 0 {
		return cyphal.NodeIDUnset
	}
	return cyphal.NodeID(c.NodeID)
}

func (c callConfig) request() (cyphal.RawRequest, error) {
	if c.Service < 0 || c.Service > cyphal.ServiceIDMax {
		return cyphal.RawRequest{}, fmt.Errorf("call service must be 0..%d", cyphal.ServiceIDMax)
	}
	data, err := hex.DecodeString(strings.ReplaceAll(c.Request, " ", ""))
	if err != nil {
		return cyphal.RawRequest{}, fmt.Errorf("invalid call request payload: %w", err)
	}
	return cyphal.RawRequest{Service: cyphal.ServiceID(c.Service), Data: data}, nil
}
