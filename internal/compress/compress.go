// Package compress implements self-describing block compression for pages.
//
// Block format: [Type uint8][UncompressedSize uint32][CompressedSize uint32][Data...]
// If CompressedSize == 0, the block is stored uncompressed. The type byte lets
// readers decode blocks written with a different configured algorithm.
package compress

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Type defines the compression algorithm used.
type Type uint8

const (
	// None stores blocks as-is.
	None Type = 0
	// LZ4 uses LZ4 block compression (fast, good for hot pages).
	LZ4 Type = 1
	// ZSTD uses ZSTD compression (better ratio, good for cold pages).
	ZSTD Type = 2
)

// String returns the configuration name of the type.
func (t Type) String() string {
	switch t {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case ZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// Parse resolves a configuration name to a Type.
func Parse(name string) (Type, error) {
	switch strings.ToLower(name) {
	case "", "none":
		return None, nil
	case "lz4":
		return LZ4, nil
	case "zstd":
		return ZSTD, nil
	default:
		return None, fmt.Errorf("compress: unknown type %q", name)
	}
}

// ErrCorruptBlock is returned when a block cannot be decoded.
var ErrCorruptBlock = errors.New("compress: corrupt block")

const headerSize = 9

// ZSTD encoder/decoder pools for efficiency
var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// Encode compresses data into a self-describing block.
// If compression does not help (ratio > 0.9), the block is stored uncompressed.
func Encode(data []byte, t Type) ([]byte, error) {
	var compressed []byte
	switch t {
	case None:
	case LZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, err
		}
		compressed = buf[:n]
	case ZSTD:
		enc := getZstdEncoder()
		compressed = enc.EncodeAll(data, nil)
		zstdEncoderPool.Put(enc)
	default:
		return nil, fmt.Errorf("compress: unknown type %d", t)
	}

	if len(compressed) == 0 || float64(len(compressed)) > float64(len(data))*0.9 {
		out := make([]byte, headerSize+len(data))
		out[0] = byte(None)
		binary.LittleEndian.PutUint32(out[1:], uint32(len(data)))
		copy(out[headerSize:], data)
		return out, nil
	}

	out := make([]byte, headerSize+len(compressed))
	out[0] = byte(t)
	binary.LittleEndian.PutUint32(out[1:], uint32(len(data)))
	binary.LittleEndian.PutUint32(out[5:], uint32(len(compressed)))
	copy(out[headerSize:], compressed)
	return out, nil
}

// Decode restores the data of a block produced by Encode.
func Decode(block []byte) ([]byte, error) {
	if len(block) < headerSize {
		return nil, fmt.Errorf("%w: block too small for header", ErrCorruptBlock)
	}
	t := Type(block[0])
	size := binary.LittleEndian.Uint32(block[1:])
	csize := binary.LittleEndian.Uint32(block[5:])

	if t == None || csize == 0 {
		if uint32(len(block)-headerSize) < size {
			return nil, fmt.Errorf("%w: block data too small", ErrCorruptBlock)
		}
		return block[headerSize : headerSize+int(size)], nil
	}
	if uint32(len(block)-headerSize) < csize {
		return nil, fmt.Errorf("%w: compressed data too small", ErrCorruptBlock)
	}
	payload := block[headerSize : headerSize+int(csize)]
	result := make([]byte, size)

	switch t {
	case LZ4:
		n, err := lz4.UncompressBlock(payload, result)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorruptBlock, err)
		}
		if uint32(n) != size {
			return nil, fmt.Errorf("%w: decompressed size mismatch", ErrCorruptBlock)
		}
		return result, nil
	case ZSTD:
		dec := getZstdDecoder()
		defer zstdDecoderPool.Put(dec)
		decoded, err := dec.DecodeAll(payload, result[:0])
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorruptBlock, err)
		}
		if uint32(len(decoded)) != size {
			return nil, fmt.Errorf("%w: decompressed size mismatch", ErrCorruptBlock)
		}
		return decoded, nil
	default:
		return nil, fmt.Errorf("%w: unknown type %d", ErrCorruptBlock, t)
	}
}
