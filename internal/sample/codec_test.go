package sample

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/uniflow/internal/ir"
)

func TestCodec_MessagesRoundTrip(t *testing.T) {
	c := NewCodec()
	msgs := []ir.Msg{
		ir.InitMsg{},
		DataMsg{Value: 42},
		QueryMsg{Query: "go"},
		ResultsMsg{Query: "go", Items: []string{"go", "gopher"}},
		CancelSearchMsg{},
		IncrementMsg{By: 2},
		TickMsg{},
		ResetMsg{},
	}

	for _, msg := range msgs {
		name, payload, err := c.EncodeMsg(msg)
		require.NoError(t, err, "%T", msg)

		got, err := c.DecodeMsg(name, payload)
		require.NoError(t, err, name)
		assert.Equal(t, msg, got, name)
	}
}

func TestCodec_EncodeNames(t *testing.T) {
	c := NewCodec()

	name, payload, err := c.EncodeMsg(DataMsg{Value: 42})
	require.NoError(t, err)
	assert.Equal(t, "data", name)
	assert.Equal(t, `{"value":42}`, string(payload))

	assert.Equal(t, "init", c.NameOf(ir.InitMsg{}))
	assert.Equal(t, "error", c.NameOf(ir.ErrorMsg{}))
	assert.Equal(t, "ir.IdleMsg", c.NameOf(ir.IdleMsg{}))
}

func TestCodec_ErrorMsg(t *testing.T) {
	c := NewCodec()
	em := ir.ErrorMsg{Err: errors.New("offline"), Cmd: SearchCmd{Query: "go"}}

	name, payload, err := c.EncodeMsg(em)
	require.NoError(t, err)
	assert.Equal(t, "error", name)
	assert.JSONEq(t, `{"error":"offline","cmd":"search","payload":{"query":"go"}}`, string(payload))

	got, err := c.DecodeMsg(name, payload)
	require.NoError(t, err)
	decoded, ok := got.(ir.ErrorMsg)
	require.True(t, ok)
	assert.Equal(t, "offline", decoded.Err.Error())
	assert.Equal(t, SearchCmd{Query: "go"}, decoded.Cmd)
}

func TestCodec_EmptyPayload(t *testing.T) {
	c := NewCodec()

	msg, err := c.DecodeMsg("tick", nil)
	require.NoError(t, err)
	assert.Equal(t, TickMsg{}, msg)

	msg, err = c.DecodeMsg("data", []byte("null"))
	require.NoError(t, err)
	assert.Equal(t, DataMsg{}, msg)
}

func TestCodec_Errors(t *testing.T) {
	c := NewCodec()

	_, err := c.DecodeMsg("nope", nil)
	assert.ErrorIs(t, err, ErrUnknownName)

	_, err = c.DecodeMsg("data", []byte(`{"valu":1}`))
	assert.Error(t, err, "unknown fields are rejected")

	_, _, err = c.EncodeMsg(struct{}{})
	assert.ErrorIs(t, err, ErrUnknownName)

	_, err = c.DecodeCmd("launch", nil)
	assert.ErrorIs(t, err, ErrUnknownName)
}

func TestCodec_MsgNames(t *testing.T) {
	assert.Equal(t, []string{
		"cancel_search", "data", "error", "increment", "init", "query", "reset", "results", "tick",
	}, NewCodec().MsgNames())
}
