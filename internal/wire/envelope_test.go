package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode_Request(t *testing.T) {
	frame, err := EncodeRequest(42, "echo", []any{"hi", int64(7)})
	require.NoError(t, err)

	env, err := Decode(frame)
	require.NoError(t, err)

	assert.Equal(t, uint64(42), env.CallID)
	require.NotNil(t, env.Request)
	assert.Equal(t, "echo", env.Request.Method)
	assert.Equal(t, []any{"hi", uint64(7)}, env.Request.Args)
	assert.False(t, env.IsReply())
}

func TestEncodeDecode_Response(t *testing.T) {
	frame, err := EncodeResponse(42, map[string]any{"ok": true})
	require.NoError(t, err)

	env, err := Decode(frame)
	require.NoError(t, err)

	assert.Equal(t, uint64(42), env.CallID)
	require.NotNil(t, env.Response)
	require.Nil(t, env.Error)
	assert.True(t, env.IsReply())

	result, ok := env.Response.Result.(map[any]any)
	require.True(t, ok)
	assert.Equal(t, true, result["ok"])
}

func TestEncodeDecode_Error(t *testing.T) {
	frame, err := EncodeError(7, "NOT_FOUND", "no such method")
	require.NoError(t, err)

	env, err := Decode(frame)
	require.NoError(t, err)

	assert.Equal(t, uint64(7), env.CallID)
	require.Nil(t, env.Response)
	require.NotNil(t, env.Error)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
	assert.Equal(t, "no such method", env.Error.Message)
	assert.True(t, env.IsReply())
}

func TestDecode_MalformedFrame(t *testing.T) {
	_, err := Decode([]byte{0xff, 0xff, 0xff})
	assert.Error(t, err)
}

func TestEncodeDecode_EmptyArgs(t *testing.T) {
	frame, err := EncodeRequest(1, "ping", nil)
	require.NoError(t, err)

	env, err := Decode(frame)
	require.NoError(t, err)
	assert.Equal(t, "ping", env.Request.Method)
	assert.Empty(t, env.Request.Args)
}
