// Package framer implements the QDV2 wrapped-chunk wire record: each
// Reed-Solomon block (data or parity) is wrapped with an index, a total
// count, and a CRC32 guard before being rasterized as a single barcode tile.
package framer

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/charonvid/charon/pkg/codecerr"
)

// Kind distinguishes a data block from a parity block within a QDV2 record.
type Kind byte

const (
	KindData   Kind = 0
	KindParity Kind = 1
)

// Magic is the 4-byte record identifier.
const Magic = "QDV2"

const headerLen = 4 + 4 + 4 + 2 + 1 // magic + idx + total + length + kind
const trailerLen = 4                // crc32

// Record is a single wrapped chunk.
type Record struct {
	Index   uint32
	Total   uint32
	Kind    Kind
	Payload []byte
}

// Marshal encodes a Record into its QDV2 wire form.
func Marshal(r Record) ([]byte, error) {
	if len(r.Payload) > 0xFFFF {
		return nil, codecerr.Wrap("framer", "marshal", fmt.Errorf("%w: payload too large: %d bytes", codecerr.ErrFormat, len(r.Payload)))
	}
	out := make([]byte, 0, headerLen+len(r.Payload)+trailerLen)
	out = append(out, Magic...)
	out = binary.BigEndian.AppendUint32(out, r.Index)
	out = binary.BigEndian.AppendUint32(out, r.Total)
	out = binary.BigEndian.AppendUint16(out, uint16(len(r.Payload)))
	out = append(out, byte(r.Kind))
	out = append(out, r.Payload...)
	out = binary.BigEndian.AppendUint32(out, crc32.ChecksumIEEE(r.Payload))
	return out, nil
}

// Unmarshal decodes a QDV2 record and verifies its CRC32 guard. A CRC
// mismatch returns codecerr.ErrFormat; callers treat that the same as a
// block that failed to decode from its barcode tile at all — as erased,
// to be recovered by pkg/fec rather than trusted.
func Unmarshal(data []byte) (Record, error) {
	if len(data) < headerLen+trailerLen || string(data[:4]) != Magic {
		return Record{}, codecerr.Wrap("framer", "unmarshal", fmt.Errorf("%w: bad magic or truncated record", codecerr.ErrFormat))
	}
	idx := binary.BigEndian.Uint32(data[4:8])
	total := binary.BigEndian.Uint32(data[8:12])
	length := binary.BigEndian.Uint16(data[12:14])
	kind := Kind(data[14])

	// CRC32 covers only the payload, so a corrupted idx/total would
	// otherwise pass undetected and misplace the block downstream.
	if idx >= total {
		return Record{}, codecerr.Wrap("framer", "unmarshal", fmt.Errorf("%w: index %d out of range for total %d", codecerr.ErrFormat, idx, total))
	}

	if headerLen+int(length)+trailerLen != len(data) {
		return Record{}, codecerr.Wrap("framer", "unmarshal", fmt.Errorf("%w: length field does not match record size", codecerr.ErrFormat))
	}
	payload := data[headerLen : headerLen+int(length)]
	wantCRC := binary.BigEndian.Uint32(data[headerLen+int(length):])
	gotCRC := crc32.ChecksumIEEE(payload)
	if wantCRC != gotCRC {
		return Record{}, codecerr.Wrap("framer", "unmarshal", fmt.Errorf("%w: crc32 mismatch", codecerr.ErrFormat))
	}

	return Record{Index: idx, Total: total, Kind: kind, Payload: payload}, nil
}
