package llmsummary

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAppliesDefaultTimeout(t *testing.T) {
	c := New(Config{Model: "gpt", APIKey: "k"})
	require.NotNil(t, c)
	assert.Equal(t, 30*time.Second, c.timeout)
}

func TestNewHonorsExplicitTimeout(t *testing.T) {
	c := New(Config{Model: "gpt", APIKey: "k", Timeout: 5})
	assert.Equal(t, 5*time.Second, c.timeout)
}

func TestConvertMessagesPreservesRoleAndContent(t *testing.T) {
	msgs := []Message{SystemPrompt("be terse"), UserMessage("summarize this")}
	converted := convertMessages(msgs)
	require.Len(t, converted, 2)
	assert.Equal(t, "system", converted[0].Role)
	assert.Equal(t, "be terse", converted[0].Content)
	assert.Equal(t, "user", converted[1].Role)
	assert.Equal(t, "summarize this", converted[1].Content)
}
