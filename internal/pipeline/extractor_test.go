package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dvloznov/gmail-finance-sync/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockChatModel struct {
	mock.Mock
}

func (m *mockChatModel) Complete(ctx context.Context, model, system, prompt string) (string, error) {
	args := m.Called(ctx, model, system, prompt)
	return args.String(0), args.Error(1)
}

func TestExtractor_Extract(t *testing.T) {
	chat := new(mockChatModel)
	ref := domain.ReferenceConfig{Currencies: []string{"COP"}}
	containsText := mock.MatchedBy(func(p string) bool {
		return strings.Contains(p, "Compra por $45.000 en Juan Valdez")
	})
	chat.On("Complete", mock.Anything, "gemini-2.5-pro", SystemInstruction, containsText).
		Return("```json\n{\"type\": \"debit\", \"amount\": 45000, \"title\": \"Juan Valdez\"}\n```", nil).
		Once()

	ext := NewExtractor(chat, "gemini-2.5-pro", DefaultFallbacks())
	c, err := ext.Extract(context.Background(), "Compra por $45.000 en Juan Valdez", ref)

	require.NoError(t, err)
	assert.Equal(t, domain.TypeDebit, c.Type)
	assert.Equal(t, "45000", c.Amount.String())
	assert.Equal(t, "Juan Valdez", c.Title)
	chat.AssertExpectations(t)
}

func TestExtractor_ModelFailure(t *testing.T) {
	chat := new(mockChatModel)
	chat.On("Complete", mock.Anything, DefaultModelName, SystemInstruction, mock.Anything).
		Return("", errors.New("quota exceeded"))

	ext := NewExtractor(chat, "", DefaultFallbacks())
	prompt, reply, err := ext.Ask(context.Background(), "texto", domain.ReferenceConfig{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
	assert.NotEmpty(t, prompt)
	assert.Empty(t, reply)
	assert.Equal(t, DefaultModelName, ext.ModelName())
	chat.AssertNumberOfCalls(t, "Complete", 1)
}

func TestExtractor_UnparseableReply(t *testing.T) {
	chat := new(mockChatModel)
	chat.On("Complete", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("Lo siento, no puedo ayudar con eso.", nil)

	ext := NewExtractor(chat, "", DefaultFallbacks())
	_, err := ext.Extract(context.Background(), "texto", domain.ReferenceConfig{})

	assert.Error(t, err)
}
