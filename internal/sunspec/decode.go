// internal/sunspec/decode.go
package sunspec

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// ScaleExempt lists fields read unscaled even when their schema names a
// scale factor. Several inverter firmwares misreport WH_SF; product
// policy is to expose lifetime energy raw and let the caller scale.
var ScaleExempt = map[string]bool{
	"WH": true,
}

// Value is one decoded point. Value is float64, string, or nil when the
// device reports the type's not-implemented sentinel.
type Value struct {
	Name  string
	Value interface{}
	Units string
}

// Nil reports whether the device left the field unimplemented.
func (v Value) Nil() bool {
	return v.Value == nil
}

// decodeRaw converts a field's registers to a numeric value and reports
// whether it is implemented. Strings are handled separately.
func decodeRaw(typ string, buf []byte) (float64, bool, error) {
	switch typ {
	case TypeInt16, TypeSunSSF:
		if len(buf) < 2 {
			return 0, false, fmt.Errorf("sunspec: short buffer for %s", typ)
		}
		raw := int16(binary.BigEndian.Uint16(buf))
		return float64(raw), raw != math.MinInt16, nil

	case TypeUint16, TypeEnum16, TypePad:
		if len(buf) < 2 {
			return 0, false, fmt.Errorf("sunspec: short buffer for %s", typ)
		}
		raw := binary.BigEndian.Uint16(buf)
		return float64(raw), raw != math.MaxUint16, nil

	case TypeInt32:
		if len(buf) < 4 {
			return 0, false, fmt.Errorf("sunspec: short buffer for %s", typ)
		}
		raw := int32(binary.BigEndian.Uint32(buf))
		return float64(raw), raw != math.MinInt32, nil

	case TypeUint32:
		if len(buf) < 4 {
			return 0, false, fmt.Errorf("sunspec: short buffer for %s", typ)
		}
		raw := binary.BigEndian.Uint32(buf)
		return float64(raw), raw != math.MaxUint32, nil

	case TypeAcc32:
		// Accumulators mark not-implemented with zero, not all-ones.
		if len(buf) < 4 {
			return 0, false, fmt.Errorf("sunspec: short buffer for %s", typ)
		}
		raw := binary.BigEndian.Uint32(buf)
		return float64(raw), raw != 0, nil

	case TypeBits32:
		if len(buf) < 4 {
			return 0, false, fmt.Errorf("sunspec: short buffer for %s", typ)
		}
		raw := binary.BigEndian.Uint32(buf)
		return float64(raw), raw != 0x80000000, nil

	case TypeInt64:
		if len(buf) < 8 {
			return 0, false, fmt.Errorf("sunspec: short buffer for %s", typ)
		}
		raw := int64(binary.BigEndian.Uint64(buf))
		return float64(raw), raw != math.MinInt64, nil

	case TypeUint64:
		if len(buf) < 8 {
			return 0, false, fmt.Errorf("sunspec: short buffer for %s", typ)
		}
		raw := binary.BigEndian.Uint64(buf)
		return float64(raw), raw != math.MaxUint64, nil

	case TypeFloat32:
		if len(buf) < 4 {
			return 0, false, fmt.Errorf("sunspec: short buffer for %s", typ)
		}
		raw := math.Float32frombits(binary.BigEndian.Uint32(buf))
		return float64(raw), !math.IsNaN(float64(raw)), nil

	default:
		return 0, false, fmt.Errorf("sunspec: unknown field type %q", typ)
	}
}

// decodeString filters register bytes to printable ASCII and trims
// padding. Devices pad with NUL and the occasional 0xFF.
func decodeString(buf []byte) string {
	var b strings.Builder
	for _, c := range buf {
		if c >= 0x20 && c <= 0x7E {
			b.WriteByte(c)
		}
	}
	return strings.TrimSpace(b.String())
}

// Options control decode post-processing.
type Options struct {
	// Round to this many decimal places; zero or negative leaves
	// values unrounded, so the zero value is a safe default.
	Round int
}

// DefaultOptions leaves values unrounded.
var DefaultOptions = Options{}

func round(v float64, places int) float64 {
	if places <= 0 {
		return v
	}
	p := math.Pow10(places)
	return math.Round(v*p) / p
}

// ReadField reads and decodes one named field of a model whose data
// starts at dataStart. The scale-factor field, when referenced, is read
// in a second round-trip; a sentinel scale factor yields the raw value
// unscaled.
func ReadField(r RegisterReader, m Model, dataStart uint16, name string, opts Options) (Value, error) {
	f, idx, err := m.Field(name)
	if err != nil {
		return Value{}, err
	}

	size := RegisterSize(f)
	buf, err := r.ReadRegisters(dataStart+FieldOffset(m, idx), size)
	if err != nil {
		return Value{}, fmt.Errorf("read field %s: %w", name, err)
	}

	out := Value{Name: name, Units: f.Units}

	if f.Type == TypeString {
		if s := decodeString(buf); s != "" {
			out.Value = s
		}
		return out, nil
	}

	raw, implemented, err := decodeRaw(f.Type, buf)
	if err != nil {
		return Value{}, err
	}
	if !implemented {
		return out, nil
	}

	scaled, err := applyScale(r, m, dataStart, f, raw)
	if err != nil {
		return Value{}, err
	}
	out.Value = round(scaled, opts.Round)
	return out, nil
}

func applyScale(r RegisterReader, m Model, dataStart uint16, f Field, raw float64) (float64, error) {
	if ScaleExempt[f.Name] {
		return raw, nil
	}

	if f.ScaleField != "" {
		sf, sfIdx, err := m.Field(f.ScaleField)
		if err != nil {
			return 0, err
		}
		buf, err := r.ReadRegisters(dataStart+FieldOffset(m, sfIdx), RegisterSize(sf))
		if err != nil {
			return 0, fmt.Errorf("read scale factor %s: %w", f.ScaleField, err)
		}
		exp, implemented, err := decodeRaw(TypeSunSSF, buf)
		if err != nil {
			return 0, err
		}
		if !implemented {
			// Device declares the factor but never populates it.
			// Hand back the raw value rather than failing the read.
			return raw, nil
		}
		return raw * math.Pow10(int(exp)), nil
	}

	if f.Scale != nil {
		return raw * math.Pow10(*f.Scale), nil
	}

	return raw, nil
}

// maxBlockRead caps a bulk block read below the Modbus 125-register
// response limit.
const maxBlockRead uint16 = 120

// ScanImplemented reads the model payload once and returns the names of
// fields the device actually populates. The read is bounded by length,
// the block length the device itself reported, so devices exposing a
// truncated model still scan. Padding and scale-factor fields are
// skipped; fields past the read window are left out.
func ScanImplemented(r RegisterReader, m Model, dataStart, length uint16) ([]string, error) {
	qty := m.Length
	if length > 0 && length < qty {
		qty = length
	}
	if qty > maxBlockRead {
		qty = maxBlockRead
	}
	buf, err := r.ReadRegisters(dataStart, qty)
	if err != nil {
		return nil, fmt.Errorf("scan model %d: %w", m.ID, err)
	}

	var names []string
	for i, f := range m.Fields {
		if f.Type == TypePad || f.Type == TypeSunSSF || f.Name == "" {
			continue
		}
		off := FieldOffset(m, i)
		size := RegisterSize(f)
		lo, hi := int(off)*2, int(off+size)*2
		if hi > len(buf) {
			continue
		}
		if f.Type == TypeString {
			if decodeString(buf[lo:hi]) != "" {
				names = append(names, f.Name)
			}
			continue
		}
		if _, implemented, err := decodeRaw(f.Type, buf[lo:hi]); err == nil && implemented {
			names = append(names, f.Name)
		}
	}
	return names, nil
}
