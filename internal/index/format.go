// Package index implements the column index engine (C7): the on-disk
// binary format, build, lookup, selectivity estimation, version binding,
// and an LRU decode cache. Spec.md §4.7 fixes the wire format exactly;
// everything here exists to produce and consume bytes matching it.
package index

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/bundlebase/bundlebase/pkg/types"
)

// Magic and format version identify a valid index file header.
var Magic = [8]byte{'B', 'B', 'I', 'D', 'X', '0', '0', '1'}

const FormatVersion byte = 1

const headerSize = 32

// ErrCorrupt is returned (never panicked) for any header/directory
// validation failure — spec.md §4.7: "any failure of these checks ->
// unavailable (not fatal)".
var ErrCorrupt = fmt.Errorf("index: corrupt or unrecognized file")

// Header is the fixed 32-byte prefix of an index file.
type Header struct {
	DType         types.IndexedValueKind
	EntryCount    uint32
	TotalRows     uint64
	BlockDirCount uint32
}

func encodeHeader(h Header) []byte {
	buf := make([]byte, headerSize)
	copy(buf[0:8], Magic[:])
	buf[8] = FormatVersion
	buf[9] = byte(h.DType)
	binary.LittleEndian.PutUint32(buf[10:14], h.EntryCount)
	binary.LittleEndian.PutUint64(buf[14:22], h.TotalRows)
	binary.LittleEndian.PutUint32(buf[22:26], h.BlockDirCount)
	// buf[26:32] reserved, left zero
	return buf
}

func decodeHeader(buf []byte) (Header, error) {
	if len(buf) < headerSize {
		return Header{}, ErrCorrupt
	}
	if !bytes.Equal(buf[0:8], Magic[:]) {
		return Header{}, ErrCorrupt
	}
	if buf[8] != FormatVersion {
		return Header{}, ErrCorrupt
	}
	return Header{
		DType:         types.IndexedValueKind(buf[9]),
		EntryCount:    binary.LittleEndian.Uint32(buf[10:14]),
		TotalRows:     binary.LittleEndian.Uint64(buf[14:22]),
		BlockDirCount: binary.LittleEndian.Uint32(buf[22:26]),
	}, nil
}

// DirectoryEntry covers one distinct-value block's [min, max] span and
// where its record lives in the blocks region.
type DirectoryEntry struct {
	Min, Max types.IndexedValue
	Offset   uint64
	Length   uint32
}

// encodeIndexedValue writes the tagged wire form: 1-byte tag then payload.
func encodeIndexedValue(buf *bytes.Buffer, v types.IndexedValue) error {
	buf.WriteByte(byte(v.Kind))
	switch v.Kind {
	case types.IndexedInt64:
		return binary.Write(buf, binary.LittleEndian, v.Int)
	case types.IndexedFloat64:
		return binary.Write(buf, binary.LittleEndian, v.Float)
	case types.IndexedUtf8:
		b := []byte(v.Str)
		if err := binary.Write(buf, binary.LittleEndian, uint32(len(b))); err != nil {
			return err
		}
		_, err := buf.Write(b)
		return err
	case types.IndexedBoolean:
		if v.Bool {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
		return nil
	case types.IndexedTimestamp:
		return binary.Write(buf, binary.LittleEndian, v.Millis)
	case types.IndexedNull:
		return nil
	default:
		return fmt.Errorf("index: unknown IndexedValue kind %d", v.Kind)
	}
}

// decodeIndexedValue reads one tagged value from r, returning the value
// and the number of bytes consumed.
func decodeIndexedValue(r []byte) (types.IndexedValue, int, error) {
	if len(r) < 1 {
		return types.IndexedValue{}, 0, ErrCorrupt
	}
	kind := types.IndexedValueKind(r[0])
	r = r[1:]
	switch kind {
	case types.IndexedInt64:
		if len(r) < 8 {
			return types.IndexedValue{}, 0, ErrCorrupt
		}
		v := int64(binary.LittleEndian.Uint64(r[:8]))
		return types.IndexedFromInt64(v), 9, nil
	case types.IndexedFloat64:
		if len(r) < 8 {
			return types.IndexedValue{}, 0, ErrCorrupt
		}
		bits := binary.LittleEndian.Uint64(r[:8])
		return types.IndexedFromFloat64(math.Float64frombits(bits)), 9, nil
	case types.IndexedUtf8:
		if len(r) < 4 {
			return types.IndexedValue{}, 0, ErrCorrupt
		}
		n := binary.LittleEndian.Uint32(r[:4])
		r = r[4:]
		if uint32(len(r)) < n {
			return types.IndexedValue{}, 0, ErrCorrupt
		}
		s := string(r[:n])
		return types.IndexedFromUtf8(s), 5 + int(n), nil
	case types.IndexedBoolean:
		if len(r) < 1 {
			return types.IndexedValue{}, 0, ErrCorrupt
		}
		return types.IndexedFromBoolean(r[0] != 0), 2, nil
	case types.IndexedTimestamp:
		if len(r) < 8 {
			return types.IndexedValue{}, 0, ErrCorrupt
		}
		v := int64(binary.LittleEndian.Uint64(r[:8]))
		return types.IndexedFromTimestamp(v), 9, nil
	case types.IndexedNull:
		return types.IndexedFromNull(), 1, nil
	default:
		return types.IndexedValue{}, 0, ErrCorrupt
	}
}
