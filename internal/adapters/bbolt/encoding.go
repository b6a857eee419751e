// Binary encoding for run blobs.
//
// Belief supports (the dominant blob) use a compact little-endian table; the
// run header uses gob.
//
// Support table format (little-endian):
//
//	nodeCount: uint32
//	per node:
//	  stateCount: uint32
//	  states:     [stateCount]× (State:uint32 + Aut:uint32)
package bbolt

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"math"

	"github.com/corey/aswin/internal/ports"
)

// stateSize is the byte size of a single encoded ProductState.
const stateSize = 8

// encodeSupports encodes a support table. A single buffer is pre-allocated
// to avoid repeated growth.
func encodeSupports(table [][]ports.ProductState) ([]byte, error) {
	totalSize := 4
	for _, support := range table {
		totalSize += 4 + len(support)*stateSize
	}

	buf := make([]byte, totalSize)
	offset := 0

	binary.LittleEndian.PutUint32(buf[offset:], uint32(len(table)))
	offset += 4

	for i, support := range table {
		binary.LittleEndian.PutUint32(buf[offset:], uint32(len(support)))
		offset += 4
		for _, ps := range support {
			if ps.State < 0 || ps.Aut < 0 || uint64(ps.State) > math.MaxUint32 || uint64(ps.Aut) > math.MaxUint32 {
				return nil, fmt.Errorf("node %d: product state (%d,%d) out of range", i, ps.State, ps.Aut)
			}
			binary.LittleEndian.PutUint32(buf[offset:], uint32(ps.State))
			offset += 4
			binary.LittleEndian.PutUint32(buf[offset:], uint32(ps.Aut))
			offset += 4
		}
	}

	return buf, nil
}

// decodeSupports decodes a support table. Every read is bounds-checked to
// avoid panics on corrupt data.
func decodeSupports(data []byte) ([][]ports.ProductState, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("support table too short: %d bytes", len(data))
	}

	offset := 0
	nodeCount := binary.LittleEndian.Uint32(data[offset:])
	offset += 4

	// Each node needs at least its 4-byte count.
	if uint64(nodeCount)*4 > uint64(len(data)-offset) {
		return nil, fmt.Errorf("support table claims %d nodes in %d bytes", nodeCount, len(data))
	}

	table := make([][]ports.ProductState, nodeCount)
	for i := uint32(0); i < nodeCount; i++ {
		if offset+4 > len(data) {
			return nil, fmt.Errorf("truncated at node %d state count (offset %d)", i, offset)
		}
		count := binary.LittleEndian.Uint32(data[offset:])
		offset += 4

		need := uint64(count) * stateSize
		if uint64(offset)+need > uint64(len(data)) {
			return nil, fmt.Errorf("truncated at node %d states (offset %d, need %d)", i, offset, need)
		}

		support := make([]ports.ProductState, count)
		for j := range support {
			support[j].State = int(binary.LittleEndian.Uint32(data[offset:]))
			offset += 4
			support[j].Aut = int(binary.LittleEndian.Uint32(data[offset:]))
			offset += 4
		}
		table[i] = support
	}

	if offset != len(data) {
		return nil, fmt.Errorf("%d trailing bytes after support table", len(data)-offset)
	}
	return table, nil
}

// encodeGob encodes a value using gob.
func encodeGob(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeGob decodes gob-encoded data into target. Target must be a pointer.
func decodeGob(data []byte, target interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(target)
}
