package cyphal

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogOption is a bitmask for selecting which device operations to log.
type LogOption uint8

const (
	LogRead LogOption = 1 << iota
	LogWrite

	LogNone LogOption = 0
	LogAll            = LogRead | LogWrite
)

// NewLoggedDevice wraps the given Device and logs selected operations at debug level. Errors are logged at error
// level.
func NewLoggedDevice(inner Device, logger *zap.Logger, opts LogOption) Device {
	return &loggedDevice{
		inner:  inner,
		logger: logger,
		level:  zapcore.DebugLevel,
		opts:   opts,
	}
}

type loggedDevice struct {
	inner  Device
	logger *zap.Logger
	level  zapcore.Level
	opts   LogOption
}

func frameFields(f Frame) []zap.Field {
	fields := []zap.Field{
		zap.String("can_id", fmt.Sprintf("%08X", f.ID())),
		zap.Int("len", f.Len()),
		zap.Binary("data", f.Data()),
	}
	if tail, ok := f.Tail(); ok {
		fields = append(fields, zap.Stringer("tail", tail))
	}
	return fields
}

func (l *loggedDevice) Initialize() error {
	err := l.inner.Initialize()
	if err != nil {
		l.logger.Error("device initialize error", zap.Error(err))
	}
	return err
}

func (l *loggedDevice) Close() error {
	return l.inner.Close()
}

func (l *loggedDevice) WriteFrame(ctx context.Context, frame Frame) error {
	if l.opts&LogWrite != 0 {
		if ce := l.logger.Check(l.level, "frame write"); ce != nil {
			ce.Write(frameFields(frame)...)
		}
	}
	err := l.inner.WriteFrame(ctx, frame)
	if l.opts&LogWrite != 0 && err != nil {
		l.logger.Error("frame write error",
			zap.String("can_id", fmt.Sprintf("%08X", frame.ID())),
			zap.Error(err),
		)
	}
	return err
}

func (l *loggedDevice) ReadFrame(ctx context.Context) (Frame, error) {
	f, err := l.inner.ReadFrame(ctx)
	if l.opts&LogRead == 0 {
		return f, err
	}
	if err != nil {
		l.logger.Error("frame read error", zap.Error(err))
		return f, err
	}
	if ce := l.logger.Check(l.level, "frame read"); ce != nil {
		ce.Write(frameFields(f)...)
	}
	return f, nil
}
