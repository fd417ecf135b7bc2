// Package digestcodec writes fixed-width little-endian values into a hash so
// state digests are stable across platforms and runs.
package digestcodec

import (
	"encoding/binary"
	"math"
)

type Writer interface {
	Write(p []byte) (n int, err error)
}

func BoolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}

func U64(w Writer, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	w.Write(tmp[:])
}

func I64(w Writer, tmp *[8]byte, v int64) { U64(w, tmp, uint64(v)) }

func F64(w Writer, tmp *[8]byte, v float64) { U64(w, tmp, math.Float64bits(v)) }

// String writes a length prefix so adjacent strings cannot run together.
func String(w Writer, tmp *[8]byte, s string) {
	U64(w, tmp, uint64(len(s)))
	w.Write([]byte(s))
}

func Bool(w Writer, v bool) { w.Write([]byte{BoolByte(v)}) }
