package value

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
)

// HashBytes returns the exchange hash of raw bytes. Custom value types can use
// it to build an ExchangeHash from their canonical encoding.
func HashBytes(b []byte) uint64 {
	return xxhash.Sum64(b)
}

func hashOf(v Value) uint64 {
	d := xxhash.New()
	var buf [9]byte
	switch t := v.(type) {
	case String:
		buf[0] = byte(KindString)
		d.Write(buf[:1])
		d.WriteString(string(t))
	case Int:
		buf[0] = byte(KindInt)
		binary.BigEndian.PutUint64(buf[1:], uint64(t))
		d.Write(buf[:])
	case Float:
		f := float64(t)
		if f == 0 {
			// -0 and 0 are equal, so they must route together.
			f = 0
		}
		buf[0] = byte(KindFloat)
		binary.BigEndian.PutUint64(buf[1:], math.Float64bits(f))
		d.Write(buf[:])
	case Bool:
		buf[0] = byte(KindBool)
		if t {
			buf[1] = 1
		}
		d.Write(buf[:2])
	case Bytes:
		buf[0] = byte(KindBytes)
		d.Write(buf[:1])
		d.Write(t)
	case Tuple:
		buf[0] = byte(KindTuple)
		binary.BigEndian.PutUint64(buf[1:], uint64(len(t)))
		d.Write(buf[:])
		for _, e := range t {
			var h uint64
			if e != nil {
				h = e.ExchangeHash()
			}
			binary.BigEndian.PutUint64(buf[1:], h)
			d.Write(buf[1:])
		}
	case None:
		buf[0] = byte(KindNone)
		d.Write(buf[:1])
	}
	return d.Sum64()
}
