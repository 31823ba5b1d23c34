package ir

import (
	"fmt"
	"strings"
)

// Cmd is an immutable, declarative request for a side effect.
//
// Every command carries an explicit identity: CmdType names the command
// family (the registry slot used by Switch and CancelByType) and CmdKey
// distinguishes instances within that family by value. Commands with no
// distinguishing parameters return an empty key.
type Cmd interface {
	CmdType() string
	CmdKey() string
}

// Identity is the (type, key) pair the executor uses to address an effect.
type Identity struct {
	Type string `json:"type"`
	Key  string `json:"key,omitempty"`
}

func (id Identity) String() string {
	if id.Key == "" {
		return id.Type
	}
	return id.Type + "#" + shortKey(id.Key)
}

// IdentityOf returns the identity of cmd.
func IdentityOf(cmd Cmd) Identity {
	if cmd == nil {
		return Identity{Type: noneType}
	}
	return Identity{Type: cmd.CmdType(), Key: cmd.CmdKey()}
}

func shortKey(key string) string {
	if len(key) > 12 {
		return key[:12]
	}
	return key
}

// Reserved command type names. Application types must not use the "ir." prefix.
const (
	noneType         = "ir.none"
	batchType        = "ir.batch"
	cancelType       = "ir.cancel"
	cancelByTypeType = "ir.cancel_by_type"
	proxyType        = "ir.proxy"
)

// controlCmd restricts the runtime's control variants to this package.
type controlCmd interface {
	Cmd
	control()
}

// IsControl reports whether cmd is one of the runtime's control variants
// (None, Batch, Switch, Cancel, CancelByType, Proxy).
func IsControl(cmd Cmd) bool {
	_, ok := cmd.(controlCmd)
	return ok
}

type noneCmd struct{}

// None is the no-op command. It never reaches an executor.
var None Cmd = noneCmd{}

func (noneCmd) CmdType() string { return noneType }
func (noneCmd) CmdKey() string  { return "" }
func (noneCmd) control()        {}

// IsNone reports whether cmd is None (or nil).
func IsNone(cmd Cmd) bool {
	if cmd == nil {
		return true
	}
	_, ok := cmd.(noneCmd)
	return ok
}

// Batch is a duplicate-free set of commands executed independently.
// Members are deduplicated by identity and kept in first-insertion order
// so that dispatch order is deterministic.
type Batch struct {
	cmds []Cmd
}

// NewBatch builds a batch from cmds. Nested batches are flattened, None
// members are dropped and duplicates (equal identity) are removed.
// An empty batch collapses to None.
func NewBatch(cmds ...Cmd) Cmd {
	b := Batch{}
	seen := make(map[memberKey]struct{}, len(cmds))
	b.add(seen, cmds...)
	if len(b.cmds) == 0 {
		return None
	}
	return b
}

// memberKey identifies a batch member. A Switch shares its inner command's
// identity but dispatches differently, so the two are distinct members.
type memberKey struct {
	Identity
	switched bool
}

func keyOf(c Cmd) memberKey {
	_, switched := c.(Switch)
	return memberKey{Identity: IdentityOf(c), switched: switched}
}

func (b *Batch) add(seen map[memberKey]struct{}, cmds ...Cmd) {
	for _, c := range cmds {
		switch v := c.(type) {
		case nil, noneCmd:
			continue
		case Batch:
			b.add(seen, v.cmds...)
		default:
			k := keyOf(v)
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			b.cmds = append(b.cmds, v)
		}
	}
}

// Cmds returns a copy of the batch members.
func (b Batch) Cmds() []Cmd {
	out := make([]Cmd, len(b.cmds))
	copy(out, b.cmds)
	return out
}

// Len returns the number of members.
func (b Batch) Len() int {
	return len(b.cmds)
}

func (b Batch) CmdType() string { return batchType }

// CmdKey is order-sensitive over the member identities. Two batches built
// from the same members in the same order have equal keys.
func (b Batch) CmdKey() string {
	ids := make([]string, len(b.cmds))
	for i, c := range b.cmds {
		k := keyOf(c)
		ids[i] = k.Type + "\x00" + k.Key
		if k.switched {
			ids[i] = "switch\x00" + ids[i]
		}
	}
	return hashWithDomain(DomainBatchKey, []byte(strings.Join(ids, "\x01")))
}

func (Batch) control() {}

// Merge combines two commands. Merging with None is identity; merging two
// batches is set union; anything else becomes a batch of both.
func Merge(a, b Cmd) Cmd {
	if IsNone(a) {
		return orNone(b)
	}
	if IsNone(b) {
		return a
	}
	return NewBatch(a, b)
}

// Switch marks Inner as "latest wins": issuing a Switch whose inner command
// has the same CmdType as a running switch effect cancels that effect
// before the new one starts.
type Switch struct {
	Inner Cmd
}

func (s Switch) CmdType() string { return s.Inner.CmdType() }
func (s Switch) CmdKey() string  { return s.Inner.CmdKey() }
func (Switch) control()          {}

// Cancel cancels the in-flight effect whose identity equals Target's.
// Cancelling an absent or finished effect is a no-op.
type Cancel struct {
	Target Cmd
}

func (c Cancel) CmdType() string { return cancelType }
func (c Cancel) CmdKey() string {
	id := IdentityOf(c.Target)
	return id.Type + "\x00" + id.Key
}
func (Cancel) control() {}

// CancelByType cancels every in-flight effect of the given command type.
type CancelByType struct {
	Type string
}

// CancelAll builds a CancelByType for the family of cmd.
func CancelAll(cmd Cmd) CancelByType {
	return CancelByType{Type: cmd.CmdType()}
}

func (c CancelByType) CmdType() string { return cancelByTypeType }
func (c CancelByType) CmdKey() string  { return c.Type }
func (CancelByType) control()          {}

// Proxy injects Msg into the message stream as if it were an effect result,
// without running any effect.
type Proxy struct {
	Msg Msg
}

func (p Proxy) CmdType() string { return proxyType }

// CmdKey distinguishes proxies by message value so that a batch of proxies
// carrying different messages keeps all of them.
func (p Proxy) CmdKey() string {
	return fmt.Sprintf("%T:%+v", p.Msg, p.Msg)
}

func (Proxy) control() {}
