package protocol

import (
	"encoding/binary"

	"github.com/traysonr/rover-control-core/internal/metrics"
)

type parserState int

const (
	stateScanSOF parserState = iota
	stateHDR
	statePayload
	stateCRC
)

// Parser is a byte-streaming, self-resynchronizing decoder for the wire
// format in wire.go. Feed as many bytes as are available; Feed drains as
// many complete frames as the input contains via onFrame. A Parser owns its
// buffers and is not safe for concurrent use — each UartBackend instance
// owns exactly one.
type Parser struct {
	state parserState

	sofPrimed bool // true once a 0xAA has been seen while scanning for SOF

	hdr    [4]byte
	hdrIdx int

	msgType uint8
	seq     uint8
	length  uint8

	payload    []byte
	payloadIdx int

	crcBuf [2]byte
	crcIdx int

	// Link counters. Never decrease. The UART backend surfaces CRCErrors via
	// LinkStatus.
	FramesReceived uint64
	VersionErrors  uint64
	CRCErrors      uint64
}

// NewParser returns a Parser in its initial SCAN_SOF state.
func NewParser() *Parser { return &Parser{} }

// Reset returns the parser to its initial state, discarding any partially
// accumulated frame. Called when a UartBackend (re)opens its link.
func (p *Parser) Reset() {
	*p = Parser{
		FramesReceived: p.FramesReceived,
		VersionErrors:  p.VersionErrors,
		CRCErrors:      p.CRCErrors,
	}
}

// Feed processes data one byte at a time, invoking onFrame for each
// complete, CRC-valid frame. Feed never panics regardless of input content.
func (p *Parser) Feed(data []byte, onFrame func(Frame)) {
	for _, b := range data {
		p.step(b, onFrame)
	}
}

func (p *Parser) step(b byte, onFrame func(Frame)) {
	switch p.state {
	case stateScanSOF:
		if p.sofPrimed && b == SOF1 {
			p.state = stateHDR
			p.hdrIdx = 0
			p.sofPrimed = false
			return
		}
		p.sofPrimed = b == SOF0

	case stateHDR:
		p.hdr[p.hdrIdx] = b
		p.hdrIdx++
		if p.hdrIdx < 4 {
			return
		}
		version := p.hdr[0]
		if version != ProtocolVersion {
			p.VersionErrors++
			metrics.IncVersionError()
			p.toScan()
			return
		}
		p.msgType = p.hdr[1]
		p.seq = p.hdr[2]
		p.length = p.hdr[3]
		if p.length == 0 {
			p.payload = nil
			p.state = stateCRC
			p.crcIdx = 0
		} else {
			p.payload = make([]byte, p.length)
			p.payloadIdx = 0
			p.state = statePayload
		}

	case statePayload:
		p.payload[p.payloadIdx] = b
		p.payloadIdx++
		if p.payloadIdx == int(p.length) {
			p.state = stateCRC
			p.crcIdx = 0
		}

	case stateCRC:
		p.crcBuf[p.crcIdx] = b
		p.crcIdx++
		if p.crcIdx < 2 {
			return
		}
		received := binary.LittleEndian.Uint16(p.crcBuf[:])
		computed := crc16CCITT(p.headerAndPayload())
		if computed == received {
			p.FramesReceived++
			onFrame(Frame{Version: ProtocolVersion, MsgType: p.msgType, Seq: p.seq, Payload: p.payload, CRC: received})
		} else {
			p.CRCErrors++
			metrics.IncCRCError()
		}
		p.toScan()
	}
}

func (p *Parser) headerAndPayload() []byte {
	buf := make([]byte, 4+len(p.payload))
	buf[0] = ProtocolVersion
	buf[1] = p.msgType
	buf[2] = p.seq
	buf[3] = p.length
	copy(buf[4:], p.payload)
	return buf
}

// toScan unconditionally returns to SCAN_SOF without inspecting the
// discarded bytes; the SOF-detection window starts fresh on the next byte.
func (p *Parser) toScan() {
	p.state = stateScanSOF
	p.sofPrimed = false
}
