// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

package snapshot

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"sync"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec identifies the body compression.
type Codec uint8

const (
	CodecNone Codec = 0
	CodecZstd Codec = 1
	CodecLZ4  Codec = 2
)

// String returns the configuration name of the codec.
func (c Codec) String() string {
	switch c {
	case CodecNone:
		return "none"
	case CodecZstd:
		return "zstd"
	case CodecLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("codec(%d)", uint8(c))
	}
}

// ParseCodec maps a configuration name to a Codec.
func ParseCodec(name string) (Codec, error) {
	switch name {
	case "none", "json":
		return CodecNone, nil
	case "", "zstd":
		return CodecZstd, nil
	case "lz4":
		return CodecLZ4, nil
	}
	return 0, fmt.Errorf("unknown snapshot codec %q", name)
}

// Frame layout, big-endian:
//
//	[0:4]   magic "RVSN"
//	[4]     format version
//	[5]     codec
//	[6:8]   reserved, zero
//	[8:16]  uncompressed length
//	[16:24] body length
//	[24:28] CRC32-C of the body
//	[28:]   body
const (
	frameVersion    = 1
	headerSize      = 28
	maxPayloadBytes = 4 << 30
)

var (
	magic      = [4]byte{'R', 'V', 'S', 'N'}
	crc32Table = crc32.MakeTable(crc32.Castagnoli)
)

var (
	zstdEncoders = sync.Pool{New: func() any {
		enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		return enc
	}}
	zstdDecoders = sync.Pool{New: func() any {
		dec, _ := zstd.NewReader(nil)
		return dec
	}}
)

// HasMagic reports whether data starts with a snapshot frame header.
func HasMagic(data []byte) bool {
	return len(data) >= len(magic) && bytes.Equal(data[:len(magic)], magic[:])
}

// Encode serializes p as JSON and frames it with the requested codec.
// An LZ4 body that does not shrink is stored uncompressed.
func Encode(p *Payload, codec Codec) ([]byte, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return frame(raw, codec)
}

func frame(raw []byte, codec Codec) ([]byte, error) {
	var body []byte
	switch codec {
	case CodecNone:
		body = raw
	case CodecZstd:
		enc := zstdEncoders.Get().(*zstd.Encoder)
		body = enc.EncodeAll(raw, nil)
		zstdEncoders.Put(enc)
	case CodecLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(raw)))
		n, err := lz4.CompressBlock(raw, buf, nil)
		if err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		if n == 0 {
			codec, body = CodecNone, raw
		} else {
			body = buf[:n]
		}
	default:
		return nil, fmt.Errorf("unknown snapshot codec %d", codec)
	}

	out := make([]byte, headerSize+len(body))
	copy(out[0:4], magic[:])
	out[4] = frameVersion
	out[5] = byte(codec)
	binary.BigEndian.PutUint64(out[8:16], uint64(len(raw)))
	binary.BigEndian.PutUint64(out[16:24], uint64(len(body)))
	binary.BigEndian.PutUint32(out[24:28], crc32.Checksum(body, crc32Table))
	copy(out[headerSize:], body)
	return out, nil
}

// Decode verifies the frame, decompresses, and unmarshals the payload.
// Every failure wraps ErrCorruptSnapshot. Decode does not run Validate.
func Decode(data []byte) (*Payload, Codec, error) {
	raw, codec, err := unframe(data)
	if err != nil {
		return nil, 0, err
	}
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, 0, fmt.Errorf("%w: unmarshal: %v", ErrCorruptSnapshot, err)
	}
	return &p, codec, nil
}

func unframe(data []byte) ([]byte, Codec, error) {
	if len(data) < headerSize {
		return nil, 0, fmt.Errorf("%w: %d bytes is shorter than the header", ErrCorruptSnapshot, len(data))
	}
	if !HasMagic(data) {
		return nil, 0, fmt.Errorf("%w: bad magic", ErrCorruptSnapshot)
	}
	if data[4] != frameVersion {
		return nil, 0, fmt.Errorf("%w: unsupported frame version %d", ErrCorruptSnapshot, data[4])
	}
	codec := Codec(data[5])
	rawLen := binary.BigEndian.Uint64(data[8:16])
	bodyLen := binary.BigEndian.Uint64(data[16:24])
	if rawLen > maxPayloadBytes || bodyLen != uint64(len(data)-headerSize) {
		return nil, 0, fmt.Errorf("%w: length mismatch (body %d, have %d)", ErrCorruptSnapshot, bodyLen, len(data)-headerSize)
	}
	body := data[headerSize:]
	if got, want := crc32.Checksum(body, crc32Table), binary.BigEndian.Uint32(data[24:28]); got != want {
		return nil, 0, fmt.Errorf("%w: checksum %08x, want %08x", ErrCorruptSnapshot, got, want)
	}

	var raw []byte
	switch codec {
	case CodecNone:
		raw = body
	case CodecZstd:
		dec := zstdDecoders.Get().(*zstd.Decoder)
		out, err := dec.DecodeAll(body, nil)
		zstdDecoders.Put(dec)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: zstd: %v", ErrCorruptSnapshot, err)
		}
		raw = out
	case CodecLZ4:
		if rawLen > uint64(len(body))*255+16 {
			return nil, 0, fmt.Errorf("%w: lz4 length %d exceeds block bound", ErrCorruptSnapshot, rawLen)
		}
		out := make([]byte, rawLen)
		n, err := lz4.UncompressBlock(body, out)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: lz4: %v", ErrCorruptSnapshot, err)
		}
		raw = out[:n]
	default:
		return nil, 0, fmt.Errorf("%w: unknown codec %d", ErrCorruptSnapshot, codec)
	}
	if uint64(len(raw)) != rawLen {
		return nil, 0, fmt.Errorf("%w: decoded %d bytes, want %d", ErrCorruptSnapshot, len(raw), rawLen)
	}
	return raw, codec, nil
}
