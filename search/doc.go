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


// Package search ranks transcript chunks against a question.
//
// The Retriever implements a two-tier algorithm:
//   - Vector mode: when at least one stored chunk carries an embedding and the
//     question was embedded, every embedded chunk is scored with Cosine and the
//     top k are returned.
//   - Keyword mode: otherwise the last few chunks (default 5) are scored with
//     KeywordScore, non-positive scores are dropped, and up to k are returned.
//
// Both modes sort stably, so ties keep arrival order. Scores from the two modes
// are never mixed: cosine similarity lies in [-1,1] while keyword scores are
// ratios in [0,1].
//
// # Usage
//
//	retriever, err := search.NewRetriever(search.WithTopK(3))
//	if err != nil {
//	    return err
//	}
//	results, err := retriever.Retrieve(ctx, "what color is the sky", queryVector, store)
//	if len(results) == 0 {
//	    // no relevant context; reply with a fixed message
//	}
//
// An empty result is not an error.
package search
