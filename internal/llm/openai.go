package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"os"

	openai "github.com/sashabaranov/go-openai"
)

// Message is a minimal chat message used by the pharmacist agent.
// Role must be one of: "system", "user", or "assistant".
type Message struct {
	Role    string
	Content string
}

// Client defines the methods required by the agent and the prescription
// analyzer.  Chat accepts the full message history (system + prior turns +
// latest user).
type Client interface {
	Chat(ctx context.Context, messages []Message) (string, error)
	AnalyzeImage(ctx context.Context, prompt string, image []byte) (string, error)
}

// OpenAIClient calls the OpenAI API for chat and vision responses.
// API credentials and model names are loaded from environment variables.
type OpenAIClient struct {
	client      *openai.Client
	chatModel   string
	visionModel string
}

// NewOpenAIClient constructs an OpenAI-backed client. It reads the API key
// and model names from the environment and falls back to sensible defaults.
func NewOpenAIClient() *OpenAIClient {
	apiKey := os.Getenv("OPENAI_API_KEY")
	c := openai.NewClient(apiKey)

	chatModel := os.Getenv("OPENAI_MODEL_CHAT")
	if chatModel == "" {
		chatModel = "gpt-4o-mini"
	}
	visionModel := os.Getenv("OPENAI_MODEL_VISION")
	if visionModel == "" {
		visionModel = chatModel
	}

	return &OpenAIClient{
		client:      c,
		chatModel:   chatModel,
		visionModel: visionModel,
	}
}

// Chat sends the message history to the chat completion API and returns the
// assistant's response.
func (c *OpenAIClient) Chat(ctx context.Context, messages []Message) (string, error) {
	if c.client == nil {
		return "", errors.New("openai client not initialized")
	}

	oaMsgs := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		role := m.Role
		if role != openai.ChatMessageRoleSystem && role != openai.ChatMessageRoleUser && role != openai.ChatMessageRoleAssistant {
			// coerce anything unknown to user
			role = openai.ChatMessageRoleUser
		}
		oaMsgs = append(oaMsgs, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.chatModel,
		Messages:    oaMsgs,
		Temperature: 0.2,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

// AnalyzeImage runs the vision model over a prescription image with the
// given OCR prompt and returns the raw model output.
func (c *OpenAIClient) AnalyzeImage(ctx context.Context, prompt string, image []byte) (string, error) {
	if c.client == nil {
		return "", errors.New("openai client not initialized")
	}

	encoded := base64.StdEncoding.EncodeToString(image)
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.visionModel,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: prompt},
					{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: "data:image/jpeg;base64," + encoded},
					},
				},
			},
		},
		Temperature: 0,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}
