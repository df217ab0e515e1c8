// Package codec serializes the column-name to value mapping stored in a
// row's data cell, and the raw timestamp stored in a marker cell.
//
// Payload format: count(uvarint), then per column
// nameLen(uvarint) + name + kind(1) + kind-specific payload.
package codec

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"

	"opal/internal/common"
)

// Value kind tags. The tag byte precedes each encoded value.
const (
	kindNull uint8 = iota
	kindString
	kindInt64
	kindFloat64
	kindBool
	kindBytes
)

var (
	// ErrUnknownKind marks a payload carrying a kind tag this codec
	// does not recognize.
	ErrUnknownKind = errors.New("codec: unknown value kind")

	// ErrBadTimestamp marks a marker-cell payload that is not exactly
	// eight bytes.
	ErrBadTimestamp = errors.New("codec: timestamp payload must be 8 bytes")
)

// EncodeValues serializes a column map into a single row payload.
// Columns are written in sorted name order so the output is
// deterministic. Supported value types: nil, string, int64 (plain ints
// are widened), float64, bool, []byte.
func EncodeValues(values map[string]any) ([]byte, error) {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	if err := common.WriteUvarint(&buf, uint64(len(names))); err != nil {
		return nil, err
	}
	for _, name := range names {
		if err := common.WriteUvarint(&buf, uint64(len(name))); err != nil {
			return nil, err
		}
		if _, err := buf.WriteString(name); err != nil {
			return nil, err
		}
		if err := encodeValue(&buf, name, values[name]); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func encodeValue(w io.Writer, name string, v any) error {
	switch val := v.(type) {
	case nil:
		return common.WriteUint8(w, kindNull)
	case string:
		if err := common.WriteUint8(w, kindString); err != nil {
			return err
		}
		if err := common.WriteUvarint(w, uint64(len(val))); err != nil {
			return err
		}
		_, err := w.Write([]byte(val))
		return err
	case int:
		return encodeValue(w, name, int64(val))
	case int64:
		if err := common.WriteUint8(w, kindInt64); err != nil {
			return err
		}
		return common.WriteUint64(w, uint64(val))
	case float64:
		if err := common.WriteUint8(w, kindFloat64); err != nil {
			return err
		}
		return common.WriteUint64(w, math.Float64bits(val))
	case bool:
		if err := common.WriteUint8(w, kindBool); err != nil {
			return err
		}
		b := uint8(0)
		if val {
			b = 1
		}
		return common.WriteUint8(w, b)
	case []byte:
		if err := common.WriteUint8(w, kindBytes); err != nil {
			return err
		}
		if err := common.WriteUvarint(w, uint64(len(val))); err != nil {
			return err
		}
		_, err := w.Write(val)
		return err
	default:
		return fmt.Errorf("codec: unsupported value type %T for column %q", v, name)
	}
}

// DecodeValues parses a row payload back into a column map. A non-empty
// projection keeps only the named columns; other columns are decoded and
// discarded. A nil or empty projection keeps everything.
func DecodeValues(payload []byte, projection map[string]struct{}) (map[string]any, error) {
	r := bytes.NewReader(payload)

	count, err := common.ReadUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("codec: read column count: %w", err)
	}

	values := make(map[string]any)
	for i := uint64(0); i < count; i++ {
		nameLen, err := common.ReadUvarint(r)
		if err != nil {
			return nil, fmt.Errorf("codec: read column name length: %w", err)
		}
		nameBytes, err := common.ReadBytes(r, nameLen)
		if err != nil {
			return nil, fmt.Errorf("codec: read column name: %w", err)
		}
		name := string(nameBytes)

		value, err := decodeValue(r)
		if err != nil {
			return nil, fmt.Errorf("codec: column %q: %w", name, err)
		}

		if len(projection) > 0 {
			if _, ok := projection[name]; !ok {
				continue
			}
		}
		values[name] = value
	}
	return values, nil
}

func decodeValue(r io.Reader) (any, error) {
	kind, err := common.ReadUint8(r)
	if err != nil {
		return nil, err
	}
	switch kind {
	case kindNull:
		return nil, nil
	case kindString:
		length, err := common.ReadUvarint(r)
		if err != nil {
			return nil, err
		}
		data, err := common.ReadBytes(r, length)
		if err != nil {
			return nil, err
		}
		return string(data), nil
	case kindInt64:
		v, err := common.ReadUint64(r)
		if err != nil {
			return nil, err
		}
		return int64(v), nil
	case kindFloat64:
		bits, err := common.ReadUint64(r)
		if err != nil {
			return nil, err
		}
		return math.Float64frombits(bits), nil
	case kindBool:
		b, err := common.ReadUint8(r)
		if err != nil {
			return nil, err
		}
		return b != 0, nil
	case kindBytes:
		length, err := common.ReadUvarint(r)
		if err != nil {
			return nil, err
		}
		data, err := common.ReadBytes(r, length)
		if err != nil {
			return nil, err
		}
		if data == nil {
			data = []byte{}
		}
		return data, nil
	default:
		return nil, fmt.Errorf("%w: 0x%02x", ErrUnknownKind, kind)
	}
}

// EncodeTimestamp serializes a marker-cell timestamp.
func EncodeTimestamp(ts int64) []byte {
	var buf bytes.Buffer
	_ = common.WriteUint64(&buf, uint64(ts))
	return buf.Bytes()
}

// DecodeTimestamp parses a marker-cell payload.
func DecodeTimestamp(payload []byte) (int64, error) {
	if len(payload) != 8 {
		return 0, ErrBadTimestamp
	}
	v, err := common.ReadUint64(bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	return int64(v), nil
}
