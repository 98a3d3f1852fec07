package remote

import (
	"context"
	"errors"
	"strings"

	"aifiles/internal/models"
)

// Summarizer runs upload, generate and fetch against the summary API.
type Summarizer struct {
	client *Client
}

func NewSummarizer(client *Client) *Summarizer {
	return &Summarizer{client: client}
}

func (s *Summarizer) Summarize(ctx context.Context, doc *models.UploadedDocument, instruction string) (string, error) {
	if doc == nil {
		return "", errors.New("document is required")
	}
	// Placeholder extractions are sent as text so the API sees what the user saw.
	up, err := s.client.UploadFile(ctx, doc.Name, doc.MimeType, strings.NewReader(doc.Content), instruction)
	if err != nil {
		return "", err
	}
	gen, err := s.client.GenerateSummary(ctx, up.FileID, instruction)
	if err != nil {
		return "", err
	}
	sum, err := s.client.GetSummary(ctx, gen.SummaryID)
	if err != nil {
		return "", err
	}
	return sum.Summary, nil
}
