package assistant

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

type fakeModel struct {
	messages []llms.MessageContent
	resp     *llms.ContentResponse
	err      error
}

func (m *fakeModel) GenerateContent(_ context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	m.messages = messages
	return m.resp, m.err
}

func (m *fakeModel) Call(_ context.Context, _ string, _ ...llms.CallOption) (string, error) {
	return "", errors.New("not used")
}

func TestLLMGenerator_WrapsPrompt(t *testing.T) {
	model := &fakeModel{resp: &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: "answer"}}}}
	gen := NewLLMGeneratorWithModel(model, 0.3)

	text, err := gen.Generate(context.Background(), "system framing", "user question")
	require.NoError(t, err)
	assert.Equal(t, "answer", text)

	require.Len(t, model.messages, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, model.messages[0].Role)
	assert.Equal(t, llms.TextPart("system framing"), model.messages[0].Parts[0])
	assert.Equal(t, llms.ChatMessageTypeHuman, model.messages[1].Role)
	assert.Equal(t, llms.TextPart("user question"), model.messages[1].Parts[0])
}

func TestLLMGenerator_Errors(t *testing.T) {
	_, err := NewLLMGeneratorWithModel(&fakeModel{resp: &llms.ContentResponse{}}, 0).Generate(context.Background(), "s", "q")
	assert.Error(t, err)

	_, err = NewLLMGeneratorWithModel(&fakeModel{err: errors.New("boom")}, 0).Generate(context.Background(), "s", "q")
	assert.EqualError(t, err, "boom")

	_, err = NewLLMGenerator(LLMConfig{Model: "m"})
	assert.Error(t, err)
}
