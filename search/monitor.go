package search

import "github.com/poiesic/vidqa/core"

// Mode identifies which ranking tier produced a result set.
type Mode string

const (
	// ModeVector ranks embedded chunks by cosine similarity.
	ModeVector Mode = "vector"
	// ModeKeyword ranks the most recent chunks by keyword overlap.
	ModeKeyword Mode = "keyword"
)

// RetrievalMonitor provides hooks to observe the retrieval process.
// Implement this interface to track mode selection and scores during retrieval.
type RetrievalMonitor interface {
	Start(query string, hasVector bool)
	ModeSelected(mode Mode, candidates int)
	Scored(chunk core.ScoredChunk)
	Finish(mode Mode, results []core.ScoredChunk)
}

// noopMonitor is a no-op implementation of RetrievalMonitor
type noopMonitor struct{}

var _ RetrievalMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string, _ bool)              {}
func (n *noopMonitor) ModeSelected(_ Mode, _ int)          {}
func (n *noopMonitor) Scored(_ core.ScoredChunk)           {}
func (n *noopMonitor) Finish(_ Mode, _ []core.ScoredChunk) {}
