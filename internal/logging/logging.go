// Package logging builds the zap logger used by the CLI.
package logging

import (
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
)

// Levels accepted by New.
const (
	LevelNone   = "none"
	LevelNormal = "normal"
	LevelDebug  = "debug"
)

// New returns a console logger writing to w. "none" discards everything,
// "normal" keeps info and above, "debug" keeps everything.
func New(level string, w io.Writer) (*zap.Logger, error) {
	var min zapcore.Level
	switch level {
	case LevelNone:
		return zap.NewNop(), nil
	case "", LevelNormal:
		min = zapcore.InfoLevel
	case LevelDebug:
		min = zapcore.DebugLevel
	default:
		return nil, fmt.Errorf("unknown log level %q (want none, normal or debug)", level)
	}

	ec := zap.NewDevelopmentEncoderConfig()
	ec.EncodeCaller = nil
	ec.TimeKey = zapcore.OmitKey
	if isTerminal(w) {
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		ec.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	core := zapcore.NewCore(consoleEnc{zapcore.NewConsoleEncoder(ec)}, zapcore.Lock(zapcore.AddSync(w)), min)
	return zap.New(core).Named("wikinav"), nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// consoleEnc prints errors without their verbose form.
type consoleEnc struct {
	zapcore.Encoder
}

func (c consoleEnc) Clone() zapcore.Encoder {
	return consoleEnc{c.Encoder.Clone()}
}

func (c consoleEnc) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	out := make([]zapcore.Field, 0, len(fields))
	for _, f := range fields {
		if f.Type == zapcore.ErrorType {
			if e, ok := f.Interface.(error); ok {
				f.Interface = errors.New(e.Error())
			}
		}
		out = append(out, f)
	}
	return c.Encoder.EncodeEntry(ent, out)
}
