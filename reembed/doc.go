// Package reembed attaches embeddings to transcript chunks that were stored
// without one because the embedding service failed during ingestion.
//
// Chunks are embedded in batches with retry and exponential backoff. Work
// stops as soon as the session is reset, so vectors computed for one video
// never land on the chunks of the next.
package reembed
