package cyphal

import (
	"context"
	"encoding"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Config configures Transport.
type Config struct {
	// NodeID is local node address. NodeIDUnset makes node anonymous: it can only publish single-frame messages.
	NodeID NodeID
	// MTU is frame data size used for outgoing transfers. Defaults to MTUClassic.
	MTU MTU
	// TransferIDTimeout is how long incomplete incoming transfers are kept. Defaults to DefaultTransferIDTimeout.
	TransferIDTimeout time.Duration
	// Logger is used to log transfers. Defaults to no-op logger.
	Logger *zap.Logger
}

// Transport sends and receives Cyphal transfers over CAN driver.
//
// Transport is meant to be driven by single owner: Publish, Invoke, Receive and Respond must not be called
// concurrently.
type Transport struct {
	device FrameReadWriter
	nodeID NodeID
	mtu    MTU

	// transferID is advanced before each new outgoing transfer
	transferID  TransferID
	queue       *PriorityQueue
	reassembler *Reassembler

	logger *zap.Logger
}

// NewTransport creates new transport instance over given driver.
func NewTransport(device FrameReadWriter, config Config) *Transport {
	mtu := config.MTU
	if mtu == 0 {
		mtu = MTUClassic
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	reassembler := NewReassembler()
	if config.TransferIDTimeout != 0 {
		reassembler.TransferIDTimeout = config.TransferIDTimeout
	}
	return &Transport{
		device:      device,
		nodeID:      config.NodeID,
		mtu:         mtu,
		queue:       NewPriorityQueue(),
		reassembler: reassembler,
		logger:      logger,
	}
}

// TransferID returns transfer id of the last outgoing transfer.
func (t *Transport) TransferID() TransferID {
	return t.transferID
}

// NodeID returns local node address.
func (t *Transport) NodeID() NodeID {
	return t.nodeID
}

func (t *Transport) nextTransferID() TransferID {
	t.transferID = t.transferID.Next()
	return t.transferID
}

// Publish sends message to its subject. Frames already sent are not retracted when sending fails midway.
func (t *Transport) Publish(ctx context.Context, priority Priority, msg Message) error {
	payload, err := msg.MarshalBinary()
	if err != nil {
		return transportError("publish marshal", err)
	}
	anonymous := !t.nodeID.IsSet()
	id, err := NewMessageIdentifier(priority, msg.SubjectID(), t.nodeID, anonymous)
	if err != nil {
		return transportError("publish identifier", err)
	}
	if anonymous && FrameCount(len(payload), t.mtu) > 1 {
		return transportError("publish", ErrAnonymousMultiFrame)
	}
	tid := t.nextTransferID()
	return t.send(ctx, "publish", id.Uint32(), payload, tid)
}

// Invoke sends service request to destination node and waits for response with same transfer id. Invoke has no
// timeout of its own, use context deadline to limit waiting for response.
func (t *Transport) Invoke(ctx context.Context, priority Priority, destination NodeID, req Request, resp Response) error {
	payload, err := req.MarshalBinary()
	if err != nil {
		return transportError("invoke marshal", err)
	}
	id, err := NewServiceIdentifier(priority, req.ServiceID(), destination, t.nodeID, true)
	if err != nil {
		return transportError("invoke identifier", err)
	}
	tid := t.nextTransferID()

	t.reassembler.Reset(tid)
	// whatever is left for our transfer id (i.e. when ctx is cancelled) is not useful to anyone
	defer t.reassembler.Reset(tid)

	if err := t.send(ctx, "invoke", id.Uint32(), payload, tid); err != nil {
		return err
	}

	for {
		frame, err := t.device.ReadFrame(ctx)
		if err != nil {
			return transportError("invoke receive", err)
		}
		t.reassembler.Push(frame)
		frames, ok := t.reassembler.TakeComplete(tid)
		if !ok {
			continue
		}
		transfer, err := DecodeTransfer(frames)
		if err != nil {
			return transportError("invoke response", err)
		}
		sid, ok := transfer.ServiceIdentifier()
		if !ok || sid.IsRequest {
			return transportError("invoke response", ErrNotService)
		}
		data, err := fitPayload(transfer, resp.Size(), t.mtu)
		if err != nil {
			return transportError("invoke response", err)
		}
		t.logger.Debug("received response",
			zap.Uint8("tid", uint8(tid)),
			zap.Uint16("service", uint16(sid.Service)),
			zap.Uint8("source", uint8(sid.Source)),
			zap.Int("frames", transfer.FrameCount),
		)
		if err := resp.UnmarshalBinary(data); err != nil {
			return transportError("invoke unmarshal", err)
		}
		return nil
	}
}

// Receive waits for next complete transfer (message or service transfer addressed to this node). Malformed transfers
// are dropped and do not end waiting. Receive returns only with a transfer or driver error.
func (t *Transport) Receive(ctx context.Context) (Transfer, error) {
	for {
		frame, err := t.device.ReadFrame(ctx)
		if err != nil {
			return Transfer{}, transportError("receive", err)
		}
		tid, isComplete := t.reassembler.Push(frame)
		if !isComplete {
			continue
		}
		frames, ok := t.reassembler.TakeComplete(tid)
		if !ok {
			continue
		}
		transfer, err := DecodeTransfer(frames)
		if err != nil {
			t.logger.Warn("dropped invalid transfer",
				zap.String("can_id", fmt.Sprintf("%08X", frames[0].ID())),
				zap.Uint8("tid", uint8(tid)),
				zap.Error(err),
			)
			continue
		}
		if sid, ok := transfer.ServiceIdentifier(); ok && sid.Destination != t.nodeID {
			continue
		}
		return transfer, nil
	}
}

// Respond sends response to service request received with Receive. Response carries transfer id of the request.
func (t *Transport) Respond(ctx context.Context, request Transfer, resp encoding.BinaryMarshaler) error {
	sid, ok := request.ServiceIdentifier()
	if !ok || !sid.IsRequest {
		return transportError("respond", ErrNotService)
	}
	payload, err := resp.MarshalBinary()
	if err != nil {
		return transportError("respond marshal", err)
	}
	id, err := NewServiceIdentifier(sid.Priority, sid.Service, sid.Source, t.nodeID, false)
	if err != nil {
		return transportError("respond identifier", err)
	}
	return t.send(ctx, "respond", id.Uint32(), payload, request.TransferID)
}

func (t *Transport) send(ctx context.Context, op string, canID uint32, payload []byte, tid TransferID) error {
	frames, err := Fragment(canID, payload, tid, t.mtu)
	if err != nil {
		return transportError(op, err)
	}
	for _, f := range frames {
		t.queue.Push(f)
	}
	t.logger.Debug("sending transfer",
		zap.String("op", op),
		zap.String("can_id", fmt.Sprintf("%08X", canID)),
		zap.Uint8("tid", uint8(tid)),
		zap.Int("frames", len(frames)),
		zap.Int("payload_size", len(payload)),
	)

	sent := 0
	for {
		f, ok := t.queue.Pop()
		if !ok {
			return nil
		}
		if err := t.device.WriteFrame(ctx, f); err != nil {
			t.discardQueue()
			if !errors.Is(err, context.Canceled) {
				t.logger.Warn("sending transfer failed",
					zap.String("op", op),
					zap.Uint8("tid", uint8(tid)),
					zap.Int("sent_frames", sent),
					zap.Error(err),
				)
			}
			return transportError(op+" send", err)
		}
		sent++
	}
}

func (t *Transport) discardQueue() {
	for {
		if _, ok := t.queue.Pop(); !ok {
			return
		}
	}
}
