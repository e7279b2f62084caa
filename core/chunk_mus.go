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


package core

import (
	"errors"
	"math"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
)

// ErrEmbeddingTooLong is returned when a decoded embedding length exceeds maxEmbeddingDim.
var ErrEmbeddingTooLong = errors.New("embedding length out of range")

const maxEmbeddingDim = 1 << 16

// TranscriptChunkMUS is the MUS serializer for TranscriptChunk.
// Field order: Seq, SegmentId, Text, Embedding (length-prefixed float bits), CreatedAt (unix micro).
var TranscriptChunkMUS = transcriptChunkMUS{}

type transcriptChunkMUS struct{}

func (s transcriptChunkMUS) Marshal(v TranscriptChunk, bs []byte) (n int) {
	n = varint.Uint64.Marshal(v.Seq, bs)
	n += IDMUS.Marshal(v.SegmentId, bs[n:])
	n += ord.String.Marshal(v.Text, bs[n:])
	n += varint.Uint64.Marshal(uint64(len(v.Embedding)), bs[n:])
	for _, f := range v.Embedding {
		n += varint.Uint32.Marshal(math.Float32bits(f), bs[n:])
	}
	return n + varint.Int64.Marshal(v.CreatedAt.UnixMicro(), bs[n:])
}

func (s transcriptChunkMUS) Unmarshal(bs []byte) (v TranscriptChunk, n int, err error) {
	var n1 int
	v.Seq, n, err = varint.Uint64.Unmarshal(bs)
	if err != nil {
		return
	}
	v.SegmentId, n1, err = IDMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Text, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	var length uint64
	length, n1, err = varint.Uint64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	if length > maxEmbeddingDim {
		err = ErrEmbeddingTooLong
		return
	}
	if length > 0 {
		v.Embedding = make([]float32, length)
		for i := range v.Embedding {
			var bits uint32
			bits, n1, err = varint.Uint32.Unmarshal(bs[n:])
			n += n1
			if err != nil {
				return
			}
			v.Embedding[i] = math.Float32frombits(bits)
		}
	}
	var micros int64
	micros, n1, err = varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.CreatedAt = time.UnixMicro(micros).UTC()
	return
}

func (s transcriptChunkMUS) Size(v TranscriptChunk) (size int) {
	size = varint.Uint64.Size(v.Seq)
	size += IDMUS.Size(v.SegmentId)
	size += ord.String.Size(v.Text)
	size += varint.Uint64.Size(uint64(len(v.Embedding)))
	for _, f := range v.Embedding {
		size += varint.Uint32.Size(math.Float32bits(f))
	}
	return size + varint.Int64.Size(v.CreatedAt.UnixMicro())
}

// IDMUS is the MUS serializer for ID.
var IDMUS = idMUS{}

type idMUS struct{}

func (s idMUS) Marshal(v ID, bs []byte) (n int) {
	return varint.Uint64.Marshal(uint64(v), bs)
}

func (s idMUS) Unmarshal(bs []byte) (v ID, n int, err error) {
	u, n, err := varint.Uint64.Unmarshal(bs)
	return ID(u), n, err
}

func (s idMUS) Size(v ID) (size int) {
	return varint.Uint64.Size(uint64(v))
}
