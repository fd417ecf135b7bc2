package encoding

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"

	"tilefactory.io/internal/sim/world/tile"
)

// EncodeCells run-length encodes tile cells into base64(varint pairs).
// The pairs are (cell, run_len) repeated; the observer stream sends chunk
// tiles this way because most chunks are long runs of one terrain.
func EncodeCells(cells []tile.Cell) string {
	var buf bytes.Buffer
	var tmp [binary.MaxVarintLen64]byte

	for i := 0; i < len(cells); {
		c := cells[i]
		run := 1
		for i+run < len(cells) && cells[i+run] == c {
			run++
		}
		n := binary.PutUvarint(tmp[:], uint64(c))
		buf.Write(tmp[:n])
		n = binary.PutUvarint(tmp[:], uint64(run))
		buf.Write(tmp[:n])
		i += run
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

// DecodeCells reverses EncodeCells. want > 0 bounds the decoded length so a
// hostile run cannot allocate unbounded memory.
func DecodeCells(b64 string, want int) ([]tile.Cell, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}
	out := make([]tile.Cell, 0, max(want, 0))
	for i := 0; i < len(raw); {
		v, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		run, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		if v > 0xFFFF {
			return nil, fmt.Errorf("cell value too large: %d", v)
		}
		if run == 0 {
			return nil, fmt.Errorf("zero run at %d", i)
		}
		if want > 0 && uint64(len(out))+run > uint64(want) {
			return nil, fmt.Errorf("decoded length exceeds %d", want)
		}
		for k := uint64(0); k < run; k++ {
			out = append(out, tile.Cell(v))
		}
	}
	if want > 0 && len(out) != want {
		return nil, fmt.Errorf("decoded %d cells, want %d", len(out), want)
	}
	return out, nil
}
