package instrument

import (
	"errors"
	"fmt"
)

// Supported tuning range of the instrument, in kHz.
const (
	MinFrequencyKHz int64 = 240_000
	MaxFrequencyKHz int64 = 6_100_000
)

// maxCommandLen is the longest payload the single declared-length byte can
// frame, accounting for the two-byte prefix adjustment.
const maxCommandLen = 253

const configQueryPayload = "C0"

// ErrCommandValidation is returned when a command is rejected before
// encoding. No bytes are produced for rejected commands.
var ErrCommandValidation = errors.New("invalid command arguments")

// BuildSpanCommand encodes a frequency span change request:
// "#<len+2>C2-F:StartKHz,EndKHz,Top,Bottom" with ASCII decimal fields.
// Delivery is best-effort by contract: the returned bytes are correct, but
// the instrument may ignore the request. Compliance is only observable
// through a later config echo.
func BuildSpanCommand(startKHz, endKHz int64, topDBM, bottomDBM int) ([]byte, error) {
	if startKHz >= endKHz {
		return nil, fmt.Errorf("%w: span start %d kHz must be below end %d kHz",
			ErrCommandValidation, startKHz, endKHz)
	}
	if startKHz < MinFrequencyKHz || endKHz > MaxFrequencyKHz {
		return nil, fmt.Errorf("%w: span %d-%d kHz outside supported range %d-%d kHz",
			ErrCommandValidation, startKHz, endKHz, MinFrequencyKHz, MaxFrequencyKHz)
	}
	if topDBM <= bottomDBM {
		return nil, fmt.Errorf("%w: amplitude top %d dBm must be above bottom %d dBm",
			ErrCommandValidation, topDBM, bottomDBM)
	}

	payload := fmt.Sprintf("%s%d,%d,%d,%d", configEchoPrefix, startKHz, endKHz, topDBM, bottomDBM)
	return frameCommand([]byte(payload))
}

// BuildConfigQuery encodes the fixed request for the current configuration.
// The instrument answers with a config echo directive.
func BuildConfigQuery() []byte {
	frame, _ := frameCommand([]byte(configQueryPayload)) // two bytes, cannot fail
	return frame
}

// frameCommand wraps a payload in "#<len+2>" framing. The declared length
// byte counts the payload plus the two framing bytes, per protocol
// convention.
func frameCommand(payload []byte) ([]byte, error) {
	if len(payload) > maxCommandLen {
		return nil, fmt.Errorf("%w: payload of %d bytes exceeds %d byte limit",
			ErrCommandValidation, len(payload), maxCommandLen)
	}

	frame := make([]byte, 0, len(payload)+2)
	frame = append(frame, directiveMarker, byte(len(payload)+2))
	return append(frame, payload...), nil
}
