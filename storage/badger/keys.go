// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package badger

import "encoding/binary"

// Key prefixes for different data types
const (
	chunkPrefix = "chunk:"
)

// makeChunkKey generates the primary key for a chunk.
// Format: prefix + seq, with seq in BigEndian order so lexicographic order is arrival order.
func makeChunkKey(seq uint64) []byte {
	buf := make([]byte, len(chunkPrefix)+8)
	offset := copy(buf, chunkPrefix)
	binary.BigEndian.PutUint64(buf[offset:], seq)
	return buf
}

// makeChunkSeekKey returns a key that sorts after every chunk key.
// Used as the starting point of reverse iteration.
func makeChunkSeekKey() []byte {
	return makeChunkKey(^uint64(0))
}

// seqFromChunkKey extracts the sequence number from a chunk key.
func seqFromChunkKey(key []byte) uint64 {
	if len(key) != len(chunkPrefix)+8 {
		return 0
	}
	return binary.BigEndian.Uint64(key[len(chunkPrefix):])
}
