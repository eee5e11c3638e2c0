// Package errs collects the closed set of error kinds the media pipeline can
// surface, following the sentinel-plus-wrap style used throughout this repo.
package errs

import (
	"fmt"
	"runtime"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Code identifies an error kind for callers that branch on failure type
// instead of matching on error identity.
type Code int32

const (
	CodeUnknown Code = iota
	CodeInvalidSyncByte
	CodeNotEnoughData
	CodeUnsupportedConfigurationRecordVersion
	CodeUnsupportedAudioFormat
	CodeUnsupportedFrequencyIndex
	CodeUnsupportedChannelConfiguration
	CodeDecoderInitializationFailed
	CodeNotInitialized
	CodeTransportTimeout
	CodeTransportClosed
)

// Error is the concrete type behind every sentinel in this package.
type Error struct {
	Code Code
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func newErr(code Code, msg string) *Error {
	return &Error{Code: code, Msg: msg}
}

// Sentinels for the §7 taxonomy. Use errors.Is against these, or wrap with
// Wrapf to attach call-site context.
var (
	ErrUnsupportedAudioFormat        = newErr(CodeUnsupportedAudioFormat, "unsupported audio format")
	ErrDecoderInitializationFailed   = newErr(CodeDecoderInitializationFailed, "decoder initialization failed")
	ErrNotInitialized                = newErr(CodeNotInitialized, "not initialized")
	ErrTransportTimeout              = newErr(CodeTransportTimeout, "transport timeout")
	ErrTransportClosed               = newErr(CodeTransportClosed, "transport closed")
)

// InvalidSyncByte reports a packet whose first byte was not 0x47.
func InvalidSyncByte(expected, found byte) error {
	return newErr(CodeInvalidSyncByte, fmt.Sprintf("invalid sync byte: expected 0x%02x, found 0x%02x", expected, found))
}

// NotEnoughData reports a short read during a context-scoped parse.
func NotEnoughData(context string) error {
	return newErr(CodeNotEnoughData, fmt.Sprintf("not enough data: %s", context))
}

// UnsupportedConfigurationRecordVersion reports a decoder config whose
// version byte this implementation does not understand.
func UnsupportedConfigurationRecordVersion(version uint8) error {
	return newErr(CodeUnsupportedConfigurationRecordVersion, fmt.Sprintf("unsupported configuration record version %d", version))
}

// UnsupportedFrequencyIndex reports an AAC sf_index outside {0..12, 15}.
func UnsupportedFrequencyIndex(idx uint8) error {
	return newErr(CodeUnsupportedFrequencyIndex, fmt.Sprintf("unsupported frequency index %d", idx))
}

// UnsupportedChannelConfiguration reports an AAC channel_config outside {0..7}.
func UnsupportedChannelConfiguration(cc uint8) error {
	return newErr(CodeUnsupportedChannelConfiguration, fmt.Sprintf("unsupported channel configuration %d", cc))
}

// CodeOf extracts the Code carried by err, or CodeUnknown if err is not one
// of ours (or is nil, mapping to the zero value).
func CodeOf(err error) Code {
	if err == nil {
		return CodeUnknown
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// Wrapf attaches call-site context to err without losing the underlying
// sentinel for errors.Is/As.
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// Recover must be deferred at the top of any goroutine that outlives its
// caller (one per stream, one per ingest connection): it logs a panic's
// value and stack instead of letting it crash the whole process, the way
// the teacher's utils.PanicRecoverWithInfo guards its per-connection
// goroutines, but logging through the caller's zerolog.Logger rather than
// silently discarding the stack trace.
func Recover(log zerolog.Logger, component string) {
	if r := recover(); r != nil {
		const size = 64 << 10
		buf := make([]byte, size)
		buf = buf[:runtime.Stack(buf, false)]
		log.Error().
			Str("component", component).
			Any("panic", r).
			Str("stack", string(buf)).
			Msg("recovered from panic")
	}
}
