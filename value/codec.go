package value

import (
	"encoding"
	"fmt"
	"sync"

	"github.com/tarungka/wireflow/internal/utils"
)

// Custom is implemented by user-defined item types that need to cross
// process boundaries. The decoder for TypeName must be registered with
// Register in every process.
type Custom interface {
	Value
	encoding.BinaryMarshaler
	TypeName() string
}

// DecodeFunc rebuilds a custom value from the bytes produced by MarshalBinary.
type DecodeFunc func([]byte) (Value, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]DecodeFunc)
)

// Register installs the decoder for a custom type name. Registering the same
// name twice replaces the earlier decoder.
func Register(typeName string, decode DecodeFunc) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[typeName] = decode
}

func lookup(typeName string) (DecodeFunc, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	fn, ok := registry[typeName]
	return fn, ok
}

// wireValue is the kind-tagged envelope a value travels in.
type wireValue struct {
	Kind  Kind        `codec:"k"`
	Str   string      `codec:"s,omitempty"`
	Int   int64       `codec:"i,omitempty"`
	Float float64     `codec:"f,omitempty"`
	Raw   []byte      `codec:"r,omitempty"`
	Elems []wireValue `codec:"e,omitempty"`
}

// Marshal encodes v for transfer to another process.
func Marshal(v Value) ([]byte, error) {
	w, err := toWire(v)
	if err != nil {
		return nil, err
	}
	buf, err := utils.EncodeMsgPack(w)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", debug(v), err)
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes bytes produced by Marshal.
func Unmarshal(b []byte) (Value, error) {
	var w wireValue
	if err := utils.DecodeMsgPack(b, &w); err != nil {
		return nil, fmt.Errorf("failed to decode value: %w", err)
	}
	return fromWire(w)
}

func toWire(v Value) (wireValue, error) {
	switch t := v.(type) {
	case nil, None:
		return wireValue{Kind: KindNone}, nil
	case String:
		return wireValue{Kind: KindString, Str: string(t)}, nil
	case Int:
		return wireValue{Kind: KindInt, Int: int64(t)}, nil
	case Float:
		return wireValue{Kind: KindFloat, Float: float64(t)}, nil
	case Bool:
		w := wireValue{Kind: KindBool}
		if t {
			w.Int = 1
		}
		return w, nil
	case Bytes:
		return wireValue{Kind: KindBytes, Raw: []byte(t)}, nil
	case Tuple:
		elems := make([]wireValue, len(t))
		for i, e := range t {
			ew, err := toWire(e)
			if err != nil {
				return wireValue{}, err
			}
			elems[i] = ew
		}
		return wireValue{Kind: KindTuple, Elems: elems}, nil
	case Custom:
		raw, err := t.MarshalBinary()
		if err != nil {
			return wireValue{}, fmt.Errorf("failed to marshal %s: %w", t.TypeName(), err)
		}
		return wireValue{Kind: KindCustom, Str: t.TypeName(), Raw: raw}, nil
	default:
		return wireValue{}, fmt.Errorf("%w: %T does not implement value.Custom", ErrUnknownType, v)
	}
}

func fromWire(w wireValue) (Value, error) {
	switch w.Kind {
	case KindNone:
		return None{}, nil
	case KindString:
		return String(w.Str), nil
	case KindInt:
		return Int(w.Int), nil
	case KindFloat:
		return Float(w.Float), nil
	case KindBool:
		return Bool(w.Int != 0), nil
	case KindBytes:
		if w.Raw == nil {
			return Bytes{}, nil
		}
		return Bytes(w.Raw), nil
	case KindTuple:
		t := make(Tuple, len(w.Elems))
		for i, e := range w.Elems {
			v, err := fromWire(e)
			if err != nil {
				return nil, err
			}
			t[i] = v
		}
		return t, nil
	case KindCustom:
		decode, ok := lookup(w.Str)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownType, w.Str)
		}
		return decode(w.Raw)
	default:
		return nil, fmt.Errorf("%w: kind %d", ErrUnknownType, w.Kind)
	}
}
