package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"aifiles/internal/config"
	"aifiles/internal/models"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"
)

// maxDocumentRunes caps how much document text is sent to the model.
const maxDocumentRunes = 60000

const systemPrompt = "You summarize meeting transcripts and business documents. " +
	"Answer in markdown with a top-level heading, short sections and bullet points. " +
	"Follow the user's instructions about focus and format."

// Service summarizes documents with a chat model.
type Service struct {
	chatModel model.BaseChatModel
	provider  string
	modelName string
}

// NewService builds the chat model for a configured provider.
func NewService(ctx context.Context, provider string, provCfg config.ProviderConfig, modelName string) (*Service, error) {
	if modelName == "" {
		modelName = provCfg.Model
	}
	if provCfg.APIKey == "" {
		return nil, fmt.Errorf("provider %s has no api_key", provider)
	}

	var (
		chatModel model.ToolCallingChatModel
		err       error
	)
	switch provider {
	case "openai":
		chatModel, err = openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL: provCfg.BaseURL,
			Model:   modelName,
			APIKey:  provCfg.APIKey,
		})
	case "gemini":
		var client *genai.Client
		client, err = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey: provCfg.APIKey,
		})
		if err != nil {
			return nil, fmt.Errorf("new gemini client: %w", err)
		}
		chatModel, err = gemini.NewChatModel(ctx, &gemini.Config{
			Client: client,
			Model:  modelName,
		})
	case "claude":
		var baseURLPtr *string
		if provCfg.BaseURL != "" {
			baseURLPtr = &provCfg.BaseURL
		}
		chatModel, err = claude.NewChatModel(ctx, &claude.Config{
			APIKey:    provCfg.APIKey,
			Model:     modelName,
			BaseURL:   baseURLPtr,
			MaxTokens: 3000,
		})
	default:
		return nil, fmt.Errorf("invalid provider: %s", provider)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s chat model: %w", provider, err)
	}
	return &Service{chatModel: chatModel, provider: provider, modelName: modelName}, nil
}

// NewWithModel wraps an existing chat model.
func NewWithModel(m model.BaseChatModel, provider string) *Service {
	return &Service{chatModel: m, provider: provider}
}

func (s *Service) Provider() string { return s.provider }

// Summarize streams the model answer and returns the full text.
func (s *Service) Summarize(ctx context.Context, doc *models.UploadedDocument, instruction string) (string, error) {
	if doc == nil {
		return "", errors.New("document cannot be nil")
	}
	if strings.TrimSpace(instruction) == "" {
		return "", errors.New("instruction is required")
	}
	streamReader, err := s.chatModel.Stream(ctx, buildMessages(doc, instruction))
	if err != nil {
		return "", fmt.Errorf("generate summary stream failed: %w", err)
	}
	defer streamReader.Close()

	var full strings.Builder
	for {
		chunk, err := streamReader.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("read summary stream: %w", err)
		}
		full.WriteString(chunk.Content)
	}
	out := strings.TrimSpace(full.String())
	if out == "" {
		return "", errors.New("model returned an empty summary")
	}
	return out, nil
}

func buildMessages(doc *models.UploadedDocument, instruction string) []*schema.Message {
	content := doc.Content
	if r := []rune(content); len(r) > maxDocumentRunes {
		content = string(r[:maxDocumentRunes])
	}
	user := fmt.Sprintf("Instructions: %s\n\nDocument %q (%d words):\n\n%s",
		instruction, doc.Name, doc.WordCount(), content)
	return []*schema.Message{
		{Role: schema.System, Content: systemPrompt},
		{Role: schema.User, Content: user},
	}
}
