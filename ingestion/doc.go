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


// Package ingestion turns captured audio segments into transcript chunks.
//
// The Pipeline accepts segments in capture order and processes them strictly
// one at a time through a single-flight Queue:
//   - Transcribe the audio (failure aborts the segment)
//   - Drop blank transcripts without storing anything
//   - Embed the text, best effort (failure stores the chunk without a vector)
//   - Append the chunk to the store and admit the next segment
//
// Every submitted segment yields exactly one IngestResult on the channel
// returned by Submit, whether it was stored, skipped, failed or discarded.
//
// Reset clears the store and the queue under one lock and starts a new epoch.
// Work already in flight is not cancelled; when it finishes, its epoch no
// longer matches and its result is discarded instead of being appended.
//
// Processing runs on an ants worker pool.
package ingestion
