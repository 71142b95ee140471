package instrument

import "bytes"

const (
	sweepMarker     byte = '$'
	directiveMarker byte = '#'

	// maxDirectiveLen bounds how far the decoder searches for a directive
	// terminator before declaring the frame malformed and resynchronizing.
	maxDirectiveLen = 256
)

// Directive prefixes sent by the instrument.
const (
	configEchoPrefix = "C2-F:"
	modelInfoPrefix  = "C2-M:"
	serialPrefix     = "Sn"
)

var crlf = []byte("\r\n")

// Decoder turns an incrementally fed byte stream into protocol frames.
//
// The stream interleaves two framings: "$S" followed by a count byte and
// exactly that many amplitude bytes, and "#"-prefixed ASCII directives
// terminated by CRLF. Bytes that fit neither are skipped one at a time and
// counted, so a caller can detect persistent desynchronization. A partial
// frame is held across Feed calls until enough bytes arrive.
//
// Buffered memory stays bounded while Next is drained: garbage is consumed
// byte by byte and a pending frame is capped by its one-byte count or by
// maxDirectiveLen.
type Decoder struct {
	buf     []byte
	skipped uint64
}

// NewDecoder returns an empty decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed appends raw bytes from the transport to the decode buffer.
func (d *Decoder) Feed(p []byte) {
	d.buf = append(d.buf, p...)
}

// SkippedBytes returns the total number of bytes discarded while
// resynchronizing on frame markers.
func (d *Decoder) SkippedBytes() uint64 {
	return d.skipped
}

// Next extracts the next complete frame from the buffer. It returns false
// when no complete frame is buffered yet; feeding more bytes and calling
// Next again resumes where it left off. Malformed input never produces an
// error, only resynchronization.
func (d *Decoder) Next() (Frame, bool) {
	for len(d.buf) > 0 {
		var (
			frame Frame
			ok    bool
			wait  bool
		)

		switch d.buf[0] {
		case sweepMarker:
			frame, ok, wait = d.nextSweep()
		case directiveMarker:
			frame, ok, wait = d.nextDirective()
		}

		if wait {
			return Frame{}, false
		}
		if ok {
			return frame, true
		}

		// Not a frame at this position: drop one byte and rescan.
		d.skip(1)
	}

	return Frame{}, false
}

// nextSweep decodes "$S<count><payload>" at the buffer start. The third
// return value signals an incomplete frame that needs more bytes.
func (d *Decoder) nextSweep() (Frame, bool, bool) {
	if len(d.buf) < 2 {
		return Frame{}, false, true
	}
	if d.buf[1] != 'S' {
		return Frame{}, false, false
	}
	if len(d.buf) < 3 {
		return Frame{}, false, true
	}

	count := int(d.buf[2])
	if count == 0 {
		return Frame{}, false, false
	}
	if len(d.buf) < 3+count {
		return Frame{}, false, true
	}

	body := make([]byte, count)
	copy(body, d.buf[3:3+count])
	d.consume(3 + count)

	return Frame{Kind: FrameSweep, Body: body}, true, false
}

// nextDirective decodes a "#"-prefixed CRLF-terminated directive at the
// buffer start and classifies it by its leading keyword.
func (d *Decoder) nextDirective() (Frame, bool, bool) {
	end := bytes.Index(d.buf, crlf)
	if end == -1 {
		if len(d.buf) > maxDirectiveLen {
			return Frame{}, false, false
		}
		return Frame{}, false, true
	}
	if end > maxDirectiveLen {
		return Frame{}, false, false
	}

	line := d.buf[1:end]
	var frame Frame
	switch {
	case bytes.HasPrefix(line, []byte(configEchoPrefix)):
		frame = Frame{Kind: FrameConfigEcho, Body: copyBytes(line[len(configEchoPrefix):])}
	case bytes.HasPrefix(line, []byte(modelInfoPrefix)), bytes.HasPrefix(line, []byte(serialPrefix)):
		frame = Frame{Kind: FrameDeviceInfo, Body: copyBytes(line)}
	default:
		frame = Frame{Kind: FrameUnknown, Body: copyBytes(line)}
	}
	d.consume(end + 2)

	return frame, true, false
}

// consume advances past n decoded bytes.
func (d *Decoder) consume(n int) {
	d.buf = d.buf[n:]
}

// skip discards n bytes and records them in the resynchronization counter.
func (d *Decoder) skip(n int) {
	d.buf = d.buf[n:]
	d.skipped += uint64(n)
}

func copyBytes(b []byte) []byte {
	return append([]byte(nil), b...)
}
