package instrument

// FrameKind identifies the type of a decoded protocol frame.
type FrameKind int

const (
	// FrameUnknown is a well-formed directive the decoder does not recognize.
	FrameUnknown FrameKind = iota

	// FrameSweep carries one raw amplitude byte per frequency bin.
	FrameSweep

	// FrameConfigEcho carries the instrument's confirmed configuration fields.
	FrameConfigEcho

	// FrameDeviceInfo carries a model/firmware or serial number directive.
	FrameDeviceInfo
)

// String returns a human-readable frame kind name.
func (k FrameKind) String() string {
	switch k {
	case FrameSweep:
		return "sweep"
	case FrameConfigEcho:
		return "config-echo"
	case FrameDeviceInfo:
		return "device-info"
	default:
		return "unknown"
	}
}

// Frame is a single protocol frame with its framing markers and declared
// length stripped. Body holds exactly the payload bytes: raw amplitudes for
// a sweep, the comma-separated fields for a config echo, and the full
// directive text otherwise.
type Frame struct {
	Kind FrameKind
	Body []byte
}
