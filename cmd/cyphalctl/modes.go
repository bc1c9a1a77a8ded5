package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aldas/go-cyphal-can"
	"go.uber.org/zap"
)

// transferReceiver is what command modes need from cyphal.Transport
type transferReceiver interface {
	Receive(ctx context.Context) (cyphal.Transfer, error)
}

var healthNames = map[uint8]string{
	healthNominal:  "nominal",
	healthAdvisory: "advisory",
	healthCaution:  "caution",
	healthWarning:  "warning",
}

// formatTransfer formats transfer as single line. Heartbeats are decoded.
func formatTransfer(t cyphal.Transfer) string {
	var kind string
	switch id := t.Identifier.(type) {
	case cyphal.MessageIdentifier:
		source := fmt.Sprintf("%d", id.Source)
		if id.Anonymous {
			source = "anon"
		}
		kind = fmt.Sprintf("msg subject=%d src=%s", id.Subject, source)
		if id.Subject == heartbeatSubjectID {
			var h heartbeat
			_ = h.UnmarshalBinary(t.Payload)
			return fmt.Sprintf("%s %s %s tid=%d heartbeat uptime=%d health=%s mode=%d vssc=%d",
				t.Time.Format(time.RFC3339Nano), t.Identifier.GetPriority(), kind, t.TransferID,
				h.Uptime, healthNames[h.Health], h.Mode, h.VendorSpecificStatusCode)
		}
	case cyphal.ServiceIdentifier:
		direction := "res"
		if id.IsRequest {
			direction = "req"
		}
		kind = fmt.Sprintf("%s service=%d src=%d dst=%d", direction, id.Service, id.Source, id.Destination)
	}
	return fmt.Sprintf("%s %s %s tid=%d [%d] % X",
		t.Time.Format(time.RFC3339Nano), t.Identifier.GetPriority(), kind, t.TransferID, len(t.Payload), t.Payload)
}

// runDump prints every received transfer until context is cancelled.
func runDump(ctx context.Context, transport transferReceiver, out io.Writer) error {
	for {
		transfer, err := transport.Receive(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		fmt.Fprintln(out, formatTransfer(transfer))
	}
}

// runHeartbeat publishes heartbeat on every interval until context is cancelled.
func runHeartbeat(ctx context.Context, transport *cyphal.Transport, cfg heartbeatConfig, logger *zap.Logger) error {
	priority, err := cyphal.ParsePriority(cfg.Priority)
	if err != nil {
		return fmt.Errorf("invalid heartbeat priority: %w", err)
	}
	if cfg.Interval <= 0 {
		return errors.New("heartbeat interval must be positive")
	}
	start := time.Now()
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()
	for {
		msg := heartbeat{
			Uptime: uptimeSeconds(start, time.Now()),
			Health: healthNominal,
			Mode:   cfg.Mode,
		}
		if err := transport.Publish(ctx, priority, msg); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		logger.Debug("heartbeat published", zap.Uint32("uptime", msg.Uptime), zap.Uint8("tid", uint8(transport.TransferID())))

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// runCall invokes service once and prints response payload as hex.
func runCall(ctx context.Context, transport *cyphal.Transport, cfg callConfig, out io.Writer) error {
	if cfg.Destination < 0 || cfg.Destination > cyphal.NodeIDMax {
		return fmt.Errorf("call destination must be 0..%d", cyphal.NodeIDMax)
	}
	priority, err := cyphal.ParsePriority(cfg.Priority)
	if err != nil {
		return fmt.Errorf("invalid call priority: %w", err)
	}
	req, err := cfg.request()
	if err != nil {
		return err
	}

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}
	resp := &cyphal.RawResponse{Length: cfg.ResponseSize}
	if err := transport.Invoke(ctx, priority, cyphal.NodeID(cfg.Destination), req, resp); err != nil {
		return err
	}
	fmt.Fprintln(out, hex.EncodeToString(resp.Data))
	return nil
}

// runServe answers requests to configured service by echoing request payload back until context is cancelled.
func runServe(ctx context.Context, transport *cyphal.Transport, cfg serveConfig, logger *zap.Logger) error {
	if !transport.NodeID().IsSet() {
		return errors.New("anonymous node can not serve requests")
	}
	for {
		transfer, err := transport.Receive(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		sid, ok := transfer.ServiceIdentifier()
		if !ok || !sid.IsRequest || int(sid.Service) != cfg.Service {
			continue
		}
		if err := transport.Respond(ctx, transfer, cyphal.BytesMarshaler(transfer.Payload)); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		logger.Debug("request served",
			zap.Uint8("client", uint8(sid.Source)),
			zap.Uint8("tid", uint8(transfer.TransferID)),
			zap.Int("size", len(transfer.Payload)),
		)
	}
}
