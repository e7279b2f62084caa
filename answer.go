package vidqa

import (
	"errors"
	"fmt"
	"strings"

	"github.com/poiesic/vidqa/ai"
	"github.com/poiesic/vidqa/core"
)

// Fixed replies for questions that cannot reach answer generation.
const (
	MessageNoTranscript  = "I don't have any transcript information yet. Please wait for the video to be processed, or make sure the video has audio."
	MessageNoContext     = "I couldn't find relevant information in the transcript to answer your question. Try asking about something that was mentioned in the video."
	MessageNoCredential  = "No API key available."
	MessageEmptyQuestion = "Please enter a question."
)

// AnswerKind classifies an Answer.
type AnswerKind int

const (
	// AnswerGenerated is a reply produced by the answer-generation service.
	AnswerGenerated AnswerKind = iota
	// AnswerInfo is a fixed informational reply; no answer was generated.
	AnswerInfo
	// AnswerError reports a failed request. Text holds a displayable message.
	AnswerError
)

func (k AnswerKind) String() string {
	switch k {
	case AnswerGenerated:
		return "answer"
	case AnswerInfo:
		return "info"
	case AnswerError:
		return "error"
	default:
		return fmt.Sprintf("AnswerKind(%d)", int(k))
	}
}

// Answer is the single reply to a question.
type Answer struct {
	Kind AnswerKind
	Text string

	// Sources are the transcript excerpts the answer was generated from,
	// most relevant first.
	Sources []core.ScoredChunk

	Err error
}

func infoAnswer(text string) Answer {
	return Answer{Kind: AnswerInfo, Text: text}
}

func errorAnswer(err error) Answer {
	return Answer{Kind: AnswerError, Text: answerErrorMessage(err), Err: err}
}

func answerErrorMessage(err error) string {
	switch {
	case errors.Is(err, ErrEmptyQuestion):
		return MessageEmptyQuestion
	case errors.Is(err, ai.ErrNoCredential):
		return MessageNoCredential
	}
	if code, ok := ai.StatusCode(err); ok {
		return fmt.Sprintf("AI API error: %d", code)
	}
	return "Error processing your question: " + err.Error()
}

// buildContext joins excerpt texts with a blank line, keeping retrieval order.
func buildContext(results []core.ScoredChunk) string {
	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = r.Text
	}
	return strings.Join(texts, "\n\n")
}
