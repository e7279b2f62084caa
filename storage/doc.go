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


// Package storage provides the chunk store abstraction for vidqa.
//
// A ChunkStore holds the transcript of one video: an append-only sequence of
// chunks in the order their audio was captured. Two implementations exist:
//
//   - storage/memory: a slice guarded by a read-write mutex (default)
//   - storage/badger: BadgerDB with MUS-encoded values, cleared on open
//
// # Constructor Return Type Pattern
//
// Public constructors return the storage.ChunkStore interface so the session
// can switch backends without code changes:
//
//	store := memory.NewChunkStore()          // returns storage.ChunkStore
//	store, err := badger.OpenMemoryChunkStore() // returns storage.ChunkStore
//
// # Lifecycle
//
// A store starts empty and is cleared with Reset when a new video begins.
// Transcripts are never carried across process restarts; the badger backend
// drops any previous chunks when it is opened.
//
// # Thread Safety
//
// All implementations must be thread-safe. Read operations return copies so
// no caller can mutate a stored chunk.
//
// # Context Support
//
// All store methods accept context.Context for cancellation.
package storage
