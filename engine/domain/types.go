// Package domain defines the core types, error kinds, and validation shared
// by the docrag ingestion and query pipelines.
package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// RecordIDPrefix prefixes every stored record id.
const RecordIDPrefix = "chunk_"

// Chunk is a window of consecutive sentences. EndSentence is exclusive.
type Chunk struct {
	Text          string `json:"text"`
	StartSentence int    `json:"start_sentence"`
	EndSentence   int    `json:"end_sentence"`
	NumSentences  int    `json:"num_sentences"`
	ChunkID       int    `json:"chunk_id"`
}

// ID returns the stored record id of the chunk.
func (c Chunk) ID() string { return RecordID(c.ChunkID) }

// RecordID derives the store key from a chunk id.
func RecordID(chunkID int) string {
	return RecordIDPrefix + strconv.Itoa(chunkID)
}

// ParseRecordID is the inverse of RecordID.
func ParseRecordID(id string) (int, error) {
	n, ok := strings.CutPrefix(id, RecordIDPrefix)
	if !ok {
		return 0, fmt.Errorf("record id %q: missing %q prefix", id, RecordIDPrefix)
	}
	return strconv.Atoi(n)
}

// Record is a persisted chunk with its embedding.
type Record struct {
	ID string `json:"id"`
	Chunk
	Embedding []float32 `json:"embedding"`
}

// NewRecord pairs a chunk with its embedding under the chunk's record id.
func NewRecord(c Chunk, embedding []float32) Record {
	return Record{ID: c.ID(), Chunk: c, Embedding: embedding}
}

// Hit is a retrieved record and its similarity to the query (1 - cosine distance).
type Hit struct {
	Record
	Similarity float32 `json:"similarity"`
}

// RetrievalResult is ordered by descending similarity.
type RetrievalResult []Hit
