package sample

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/uniflow/internal/ir"
)

// ErrUnknownName is returned when decoding a name the codec does not know.
var ErrUnknownName = errors.New("unknown name")

// Codec maps message and command names to Go values and back. Payloads are
// JSON objects.
type Codec struct {
	msgs     map[string]func(json.RawMessage) (ir.Msg, error)
	msgNames map[string]string
	cmds     map[string]func(json.RawMessage) (ir.Cmd, error)
	cmdNames map[string]string
}

// NewCodec returns the codec for the sample app's messages and commands.
func NewCodec() *Codec {
	c := &Codec{
		msgs:     make(map[string]func(json.RawMessage) (ir.Msg, error)),
		msgNames: make(map[string]string),
		cmds:     make(map[string]func(json.RawMessage) (ir.Cmd, error)),
		cmdNames: make(map[string]string),
	}
	registerMsg[ir.InitMsg](c, "init")
	registerMsg[DataMsg](c, "data")
	registerMsg[QueryMsg](c, "query")
	registerMsg[ResultsMsg](c, "results")
	registerMsg[CancelSearchMsg](c, "cancel_search")
	registerMsg[IncrementMsg](c, "increment")
	registerMsg[TickMsg](c, "tick")
	registerMsg[ResetMsg](c, "reset")

	registerCmd[FetchCmd](c, "fetch")
	registerCmd[SearchCmd](c, "search")
	return c
}

func registerMsg[T any](c *Codec, name string) {
	var zero T
	c.msgNames[ir.MsgType(zero)] = name
	c.msgs[name] = func(payload json.RawMessage) (ir.Msg, error) {
		var v T
		if err := decodePayload(payload, &v); err != nil {
			return nil, err
		}
		return v, nil
	}
}

func registerCmd[T ir.Cmd](c *Codec, name string) {
	var zero T
	c.cmdNames[ir.MsgType(zero)] = name
	c.cmds[name] = func(payload json.RawMessage) (ir.Cmd, error) {
		var v T
		if err := decodePayload(payload, &v); err != nil {
			return nil, err
		}
		return v, nil
	}
}

// decodePayload rejects unknown fields so that typos in scenarios fail.
func decodePayload(payload json.RawMessage, v any) error {
	if len(bytes.TrimSpace(payload)) == 0 || string(payload) == "null" {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// errorPayload is the wire form of ir.ErrorMsg.
type errorPayload struct {
	Error   string          `json:"error"`
	Cmd     string          `json:"cmd,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

const errorName = "error"

// EncodeMsg returns msg's name and JSON payload.
func (c *Codec) EncodeMsg(msg ir.Msg) (string, []byte, error) {
	if em, ok := msg.(ir.ErrorMsg); ok {
		return c.encodeError(em)
	}
	name, ok := c.msgNames[ir.MsgType(msg)]
	if !ok {
		return "", nil, fmt.Errorf("encode message %s: %w", ir.MsgType(msg), ErrUnknownName)
	}
	payload, err := marshal(msg)
	if err != nil {
		return "", nil, fmt.Errorf("encode message %s: %w", name, err)
	}
	return name, payload, nil
}

func (c *Codec) encodeError(em ir.ErrorMsg) (string, []byte, error) {
	wire := errorPayload{Error: errText(em.Err)}
	if em.Cmd != nil {
		name, payload, err := c.EncodeCmd(em.Cmd)
		if err != nil {
			return "", nil, fmt.Errorf("encode error message: %w", err)
		}
		wire.Cmd = name
		wire.Payload = payload
	}
	payload, err := marshal(wire)
	if err != nil {
		return "", nil, fmt.Errorf("encode error message: %w", err)
	}
	return errorName, payload, nil
}

// DecodeMsg builds the message named name from its JSON payload.
func (c *Codec) DecodeMsg(name string, payload []byte) (ir.Msg, error) {
	if name == errorName {
		return c.decodeError(payload)
	}
	decode, ok := c.msgs[name]
	if !ok {
		return nil, fmt.Errorf("decode message %q: %w", name, ErrUnknownName)
	}
	msg, err := decode(payload)
	if err != nil {
		return nil, fmt.Errorf("decode message %q: %w", name, err)
	}
	return msg, nil
}

func (c *Codec) decodeError(payload []byte) (ir.Msg, error) {
	var wire errorPayload
	if err := decodePayload(payload, &wire); err != nil {
		return nil, fmt.Errorf("decode error message: %w", err)
	}
	em := ir.ErrorMsg{Err: errors.New(wire.Error)}
	if wire.Cmd != "" {
		cmd, err := c.DecodeCmd(wire.Cmd, wire.Payload)
		if err != nil {
			return nil, fmt.Errorf("decode error message: %w", err)
		}
		em.Cmd = cmd
	}
	return em, nil
}

// EncodeCmd returns cmd's name and JSON payload.
func (c *Codec) EncodeCmd(cmd ir.Cmd) (string, []byte, error) {
	name, ok := c.cmdNames[ir.MsgType(cmd)]
	if !ok {
		return "", nil, fmt.Errorf("encode command %s: %w", ir.IdentityOf(cmd).Type, ErrUnknownName)
	}
	payload, err := marshal(cmd)
	if err != nil {
		return "", nil, fmt.Errorf("encode command %s: %w", name, err)
	}
	return name, payload, nil
}

// DecodeCmd builds the command named name from its JSON payload.
func (c *Codec) DecodeCmd(name string, payload []byte) (ir.Cmd, error) {
	decode, ok := c.cmds[name]
	if !ok {
		return nil, fmt.Errorf("decode command %q: %w", name, ErrUnknownName)
	}
	cmd, err := decode(payload)
	if err != nil {
		return nil, fmt.Errorf("decode command %q: %w", name, err)
	}
	return cmd, nil
}

// MsgNames returns every message name the codec knows, sorted.
func (c *Codec) MsgNames() []string {
	names := make([]string, 0, len(c.msgs)+1)
	for name := range c.msgs {
		names = append(names, name)
	}
	names = append(names, errorName)
	sort.Strings(names)
	return names
}

// NameOf returns the wire name of msg, or its Go type name if unknown.
func (c *Codec) NameOf(msg ir.Msg) string {
	if _, ok := msg.(ir.ErrorMsg); ok {
		return errorName
	}
	if name, ok := c.msgNames[ir.MsgType(msg)]; ok {
		return name
	}
	return ir.MsgType(msg)
}

// marshal encodes v as compact JSON without HTML escaping.
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return []byte(strings.TrimSpace(buf.String())), nil
}
