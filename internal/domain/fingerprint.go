package domain

import (
	"encoding/binary"
	"math"

	"github.com/zeebo/xxh3"
)

// Fingerprint hashes a row's kinds and payloads. Rows that are Equal value for
// value always share a fingerprint; distinct rows may collide, so callers
// confirm matches with RowsEqual.
func Fingerprint(row []Value) uint64 {
	buf := make([]byte, 0, 16*len(row))
	for _, v := range row {
		buf = append(buf, byte(v.kind))
		switch v.kind {
		case KindNumber:
			f := v.num
			if f == 0 {
				f = 0 // fold -0 into +0, they compare equal
			}
			buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(f))
		case KindString:
			buf = binary.LittleEndian.AppendUint64(buf, uint64(len(v.str)))
			buf = append(buf, v.str...)
		case KindTime:
			buf = binary.LittleEndian.AppendUint64(buf, uint64(v.ts.UnixNano()))
		}
	}
	return xxh3.Hash(buf)
}

// DuplicateMask marks every row that is an exact duplicate of an earlier row.
// The first occurrence of each distinct row is left unmarked.
func (d Dataset) DuplicateMask() []bool {
	mask := make([]bool, len(d.rows))
	seen := make(map[uint64][]int, len(d.rows))
	for i, r := range d.rows {
		h := Fingerprint(r)
		for _, j := range seen[h] {
			if RowsEqual(d.rows[j], r) {
				mask[i] = true
				break
			}
		}
		if !mask[i] {
			seen[h] = append(seen[h], i)
		}
	}
	return mask
}

// DuplicateCount returns the number of rows that repeat an earlier row.
func (d Dataset) DuplicateCount() int {
	n := 0
	for _, dup := range d.DuplicateMask() {
		if dup {
			n++
		}
	}
	return n
}
