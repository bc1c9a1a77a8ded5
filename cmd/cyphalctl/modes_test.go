package main

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/aldas/go-cyphal-can"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type scriptedReceiver struct {
	transfers []cyphal.Transfer
	err       error
}

func (r *scriptedReceiver) Receive(ctx context.Context) (cyphal.Transfer, error) {
	if len(r.transfers) == 0 {
		return cyphal.Transfer{}, r.err
	}
	t := r.transfers[0]
	r.transfers = r.transfers[1:]
	return t, nil
}

func TestFormatTransfer(t *testing.T) {
	var testCases = []struct {
		name   string
		when   cyphal.Transfer
		expect string
	}{
		{
			name: "ok, heartbeat",
			when: cyphal.Transfer{
				Identifier: cyphal.MessageIdentifier{Priority: cyphal.PriorityNominal, Subject: 7509, Source: 42},
				TransferID: 3,
				Payload:    []byte{0x10, 0, 0, 0, 0, 0, 0},
			},
			expect: "0001-01-01T00:00:00Z nominal msg subject=7509 src=42 tid=3 heartbeat uptime=16 health=nominal mode=0 vssc=0",
		},
		{
			name: "ok, anonymous message",
			when: cyphal.Transfer{
				Identifier: cyphal.MessageIdentifier{Priority: cyphal.PriorityLow, Anonymous: true, Subject: 100},
				TransferID: 31,
				Payload:    []byte{0x01, 0xAB},
			},
			expect: "0001-01-01T00:00:00Z low msg subject=100 src=anon tid=31 [2] 01 AB",
		},
		{
			name: "ok, service request",
			when: cyphal.Transfer{
				Identifier: cyphal.ServiceIdentifier{Priority: cyphal.PriorityFast, IsRequest: true, Service: 430, Destination: 42, Source: 123},
				TransferID: 0,
				Payload:    []byte{0xFF},
			},
			expect: "0001-01-01T00:00:00Z fast req service=430 src=123 dst=42 tid=0 [1] FF",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expect, formatTransfer(tc.when))
		})
	}
}

func TestRunDump(t *testing.T) {
	receiver := &scriptedReceiver{
		transfers: []cyphal.Transfer{
			{Identifier: cyphal.MessageIdentifier{Priority: cyphal.PriorityLow, Subject: 1, Source: 2}, Payload: []byte{0x01}},
			{Identifier: cyphal.MessageIdentifier{Priority: cyphal.PriorityLow, Subject: 1, Source: 2}, Payload: []byte{0x02}},
		},
		err: context.Canceled,
	}
	out := &bytes.Buffer{}

	assert.NoError(t, runDump(context.Background(), receiver, out))
	assert.Equal(t,
		"0001-01-01T00:00:00Z low msg subject=1 src=2 tid=0 [1] 01\n"+
			"0001-01-01T00:00:00Z low msg subject=1 src=2 tid=0 [1] 02\n",
		out.String(),
	)
}

func TestRunDump_deviceError(t *testing.T) {
	receiver := &scriptedReceiver{err: io.ErrUnexpectedEOF}

	err := runDump(context.Background(), receiver, io.Discard)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestRunHeartbeat(t *testing.T) {
	bus := cyphal.NewLoopbackBus()
	defer bus.Close()

	publisher := cyphal.NewTransport(bus.Open(), cyphal.Config{NodeID: 42})
	subscriber := cyphal.NewTransport(bus.Open(), cyphal.Config{NodeID: 1})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- runHeartbeat(ctx, publisher, heartbeatConfig{Interval: 10 * time.Millisecond, Priority: "slow", Mode: 3}, zap.NewNop())
	}()

	for i := 0; i < 2; i++ {
		transfer, err := subscriber.Receive(ctx)
		require.NoError(t, err)
		assert.Equal(t, cyphal.MessageIdentifier{Priority: cyphal.PrioritySlow, Subject: heartbeatSubjectID, Source: 42}, transfer.Identifier)
		assert.Equal(t, cyphal.TransferID(i+1), transfer.TransferID)

		var h heartbeat
		assert.NoError(t, h.UnmarshalBinary(transfer.Payload))
		assert.Equal(t, uint8(3), h.Mode)
		assert.Equal(t, healthNominal, h.Health)
	}

	cancel()
	assert.NoError(t, <-done)
}

func TestRunHeartbeat_invalidConfig(t *testing.T) {
	transport := cyphal.NewTransport(cyphal.NewLoopbackBus().Open(), cyphal.Config{NodeID: 42})

	err := runHeartbeat(context.Background(), transport, heartbeatConfig{Interval: time.Second, Priority: "urgent"}, zap.NewNop())
	assert.ErrorIs(t, err, cyphal.ErrOutOfRange)

	err = runHeartbeat(context.Background(), transport, heartbeatConfig{Priority: "slow"}, zap.NewNop())
	assert.EqualError(t, err, "heartbeat interval must be positive")
}

func TestRunServeAndCall(t *testing.T) {
	bus := cyphal.NewLoopbackBus()
	defer bus.Close()

	server := cyphal.NewTransport(bus.Open(), cyphal.Config{NodeID: 42})
	client := cyphal.NewTransport(bus.Open(), cyphal.Config{NodeID: 123})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- runServe(ctx, server, serveConfig{Service: 430}, zap.NewNop())
	}()

	out := &bytes.Buffer{}
	err := runCall(ctx, client, callConfig{
		Destination:  42,
		Service:      430,
		Request:      "01 02 03",
		ResponseSize: 3,
		Timeout:      time.Second,
		Priority:     "high",
	}, out)
	assert.NoError(t, err)
	assert.Equal(t, "010203\n", out.String())

	cancel()
	assert.NoError(t, <-done)
}

func TestRunCall_timeout(t *testing.T) {
	bus := cyphal.NewLoopbackBus()
	defer bus.Close()
	client := cyphal.NewTransport(bus.Open(), cyphal.Config{NodeID: 123})
	_ = bus.Open() // nobody answers on the bus

	err := runCall(context.Background(), client, callConfig{
		Destination: 42,
		Service:     430,
		Timeout:     20 * time.Millisecond,
		Priority:    "nominal",
	}, io.Discard)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorIs(t, err, cyphal.ErrTransport)
}

func TestRunCall_invalidDestination(t *testing.T) {
	client := cyphal.NewTransport(cyphal.NewLoopbackBus().Open(), cyphal.Config{NodeID: 123})

	err := runCall(context.Background(), client, callConfig{Destination: -1, Priority: "nominal"}, io.Discard)
	assert.EqualError(t, err, "call destination must be 0..127")
}

func TestRunServe_anonymous(t *testing.T) {
	server := cyphal.NewTransport(cyphal.NewLoopbackBus().Open(), cyphal.Config{NodeID: cyphal.NodeIDUnset})

	err := runServe(context.Background(), server, serveConfig{Service: 430}, zap.NewNop())
	assert.EqualError(t, err, "anonymous node can not serve requests")
}
