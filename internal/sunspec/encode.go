// internal/sunspec/encode.go
package sunspec

import (
	"encoding/binary"
	"fmt"
	"math"
)

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int64(n), true
	default:
		return 0, false
	}
}

// EncodeField converts a caller value into big-endian register bytes for
// the field's type. Only integer and string fields are writable;
// everything else fails with ErrWriteUnsupported.
func EncodeField(f Field, value interface{}) ([]byte, error) {
	switch f.Type {
	case TypeInt16, TypeSunSSF:
		n, ok := toInt64(value)
		if !ok || n < math.MinInt16 || n > math.MaxInt16 {
			return nil, fmt.Errorf("encode %s: value %v out of int16 range", f.Name, value)
		}
		buf := make([]byte, 2)
		binary.BigEndian.PutUint16(buf, uint16(int16(n)))
		return buf, nil

	case TypeUint16, TypeEnum16:
		n, ok := toInt64(value)
		if !ok || n < 0 || n > math.MaxUint16 {
			return nil, fmt.Errorf("encode %s: value %v out of uint16 range", f.Name, value)
		}
		buf := make([]byte, 2)
		binary.BigEndian.PutUint16(buf, uint16(n))
		return buf, nil

	case TypeInt32:
		n, ok := toInt64(value)
		if !ok || n < math.MinInt32 || n > math.MaxInt32 {
			return nil, fmt.Errorf("encode %s: value %v out of int32 range", f.Name, value)
		}
		buf := make([]byte, 4)
		binary.BigEndian.PutUint32(buf, uint32(int32(n)))
		return buf, nil

	case TypeUint32:
		n, ok := toInt64(value)
		if !ok || n < 0 || n > math.MaxUint32 {
			return nil, fmt.Errorf("encode %s: value %v out of uint32 range", f.Name, value)
		}
		buf := make([]byte, 4)
		binary.BigEndian.PutUint32(buf, uint32(n))
		return buf, nil

	case TypeString:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("encode %s: expected string, got %T", f.Name, value)
		}
		size := int(RegisterSize(f)) * 2
		if len(s) > size {
			return nil, fmt.Errorf("encode %s: string longer than %d bytes", f.Name, size)
		}
		buf := make([]byte, size)
		copy(buf, s)
		return buf, nil

	default:
		return nil, fmt.Errorf("%w: %s (%s)", ErrWriteUnsupported, f.Name, f.Type)
	}
}
