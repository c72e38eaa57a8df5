package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comigor/jarvis-chat/internal/chatclient"
)

func TestREPL_CommandsWithoutSession(t *testing.T) {
	ctl := chatclient.NewController(chatclient.New("http://127.0.0.1:0"), chatclient.NewStore())

	var out bytes.Buffer
	in := strings.NewReader("/help\n\nhello\n/quit\nnever sent\n")
	require.NoError(t, repl(context.Background(), ctl, in, &out))

	s := out.String()
	assert.Contains(t, s, "commands: /new, /list")
	assert.NotContains(t, s, "never sent")
}

func TestEnvOr(t *testing.T) {
	t.Setenv("JARVIS_TEST_VALUE", "set")
	assert.Equal(t, "set", envOr("JARVIS_TEST_VALUE", "default"))
	assert.Equal(t, "default", envOr("JARVIS_TEST_UNSET", "default"))
}
