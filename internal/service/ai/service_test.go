package ai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"aifiles/internal/config"
	"aifiles/internal/models"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChatModel struct {
	chunks []string
	err    error
	input  []*schema.Message
}

func (f *fakeChatModel) Generate(ctx context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.input = input
	if f.err != nil {
		return nil, f.err
	}
	return &schema.Message{Role: schema.Assistant, Content: strings.Join(f.chunks, "")}, nil
}

func (f *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	f.input = input
	if f.err != nil {
		return nil, f.err
	}
	msgs := make([]*schema.Message, 0, len(f.chunks))
	for _, c := range f.chunks {
		msgs = append(msgs, &schema.Message{Role: schema.Assistant, Content: c})
	}
	return schema.StreamReaderFromArray(msgs), nil
}

func TestSummarizeJoinsStream(t *testing.T) {
	fake := &fakeChatModel{chunks: []string{"# Sum", "mary\n", "• point"}}
	svc := NewWithModel(fake, "fake")
	doc := &models.UploadedDocument{Name: "notes.txt", Content: "we met and decided"}

	out, err := svc.Summarize(context.Background(), doc, "action items")
	require.NoError(t, err)
	assert.Equal(t, "# Summary\n• point", out)

	require.Len(t, fake.input, 2)
	assert.Equal(t, schema.System, fake.input[0].Role)
	assert.Contains(t, fake.input[1].Content, "Instructions: action items")
	assert.Contains(t, fake.input[1].Content, `Document "notes.txt" (4 words)`)
}

func TestSummarizeErrors(t *testing.T) {
	svc := NewWithModel(&fakeChatModel{err: errors.New("quota")}, "fake")
	_, err := svc.Summarize(context.Background(), &models.UploadedDocument{Content: "x"}, "recap")
	assert.ErrorContains(t, err, "quota")

	_, err = svc.Summarize(context.Background(), nil, "recap")
	assert.Error(t, err)

	_, err = NewWithModel(&fakeChatModel{}, "fake").Summarize(context.Background(), &models.UploadedDocument{Content: "x"}, "recap")
	assert.ErrorContains(t, err, "empty summary")
}

func TestBuildMessagesTruncates(t *testing.T) {
	doc := &models.UploadedDocument{Name: "big.txt", Content: strings.Repeat("é", maxDocumentRunes+10)}
	msgs := buildMessages(doc, "recap")
	assert.Equal(t, maxDocumentRunes, strings.Count(msgs[1].Content, "é"))
}

func TestNewServiceRejectsUnknownProvider(t *testing.T) {
	_, err := NewService(context.Background(), "mystery", config.ProviderConfig{APIKey: "k"}, "m")
	assert.Error(t, err)
	_, err = NewService(context.Background(), "openai", config.ProviderConfig{}, "m")
	assert.Error(t, err)
}
