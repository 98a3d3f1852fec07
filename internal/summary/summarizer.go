package summary

import (
	"context"
	"errors"

	"aifiles/internal/models"
)

// Summarizer produces the summary text for a document.
type Summarizer interface {
	Summarize(ctx context.Context, doc *models.UploadedDocument, instruction string) (string, error)
}

// Rules is the keyword-template summarizer.
type Rules struct{}

func (Rules) Summarize(_ context.Context, doc *models.UploadedDocument, instruction string) (string, error) {
	if doc == nil {
		return "", errors.New("document is required")
	}
	return Synthesize(doc.Content, instruction), nil
}

// PromptExamples are the quick instructions offered on the intake screen.
var PromptExamples = []string{
	"Summarize in bullet points for executives",
	"Highlight only action items and deadlines",
	"Extract key decisions and next steps",
	"Create a meeting recap with participant roles",
	"Identify risks and mitigation strategies",
}
