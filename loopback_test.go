package cyphal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoopbackBus_SendReceive_MultiEndpoint(t *testing.T) {
	bus := NewLoopbackBus()
	defer bus.Close()

	a := bus.Open()
	b := bus.Open()
	c := bus.Open()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	f, _ := NewFrame(testCANID, []byte{0xDE, 0xAD, 0xE0}, MTUClassic)
	assert.NoError(t, a.WriteFrame(ctx, f))

	for _, ep := range []Device{b, c} {
		got, err := ep.ReadFrame(ctx)
		assert.NoError(t, err)
		assert.Equal(t, f.Data(), got.Data())
		assert.False(t, got.Time().IsZero())
	}

	// sender does not receive its own frames
	short, cancelShort := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancelShort()
	_, err := a.ReadFrame(short)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLoopbackBus_Close(t *testing.T) {
	bus := NewLoopbackBus()
	a := bus.Open()
	b := bus.Open()

	assert.NoError(t, b.Close())
	_, err := b.ReadFrame(context.Background())
	assert.ErrorIs(t, err, ErrClosed)

	assert.NoError(t, bus.Close())
	f, _ := NewFrame(testCANID, []byte{0xE0}, MTUClassic)
	assert.ErrorIs(t, a.WriteFrame(context.Background(), f), ErrClosed)

	late := bus.Open()
	_, err = late.ReadFrame(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}
