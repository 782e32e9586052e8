package rhema

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Refuse to allocate unbounded buffers for corrupt length prefixes.
const maxMsgSize = 16 << 20

// NextID returns a fresh request ID for wire messages.
func NextID() string {
	return uuid.NewString()
}

// WriteMsg writes a length-prefixed JSON message: a big-endian uint32
// byte count followed by the JSON body.
func WriteMsg(w io.Writer, msg map[string]any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if err := binary.Write(w, binary.BigEndian, uint32(len(data))); err != nil {
		return fmt.Errorf("write length: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	return nil
}

// ReadMsg reads one length-prefixed JSON message. Returns io.EOF
// unwrapped when the peer closes between messages.
func ReadMsg(r io.Reader) (map[string]any, error) {
	var length uint32
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("read length: %w", err)
	}
	if length > maxMsgSize {
		return nil, fmt.Errorf("message too large: %d bytes", length)
	}
	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	var msg map[string]any
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	return msg, nil
}

// TermToGo converts a term to plain Go data for JSON responses.
// Symbols become "sym:"-prefixed strings so they survive the round
// trip distinct from string leaves; the unit leaf maps to null.
func TermToGo(t Term) (any, error) {
	switch t.Kind() {
	case KindBool:
		return t.Bool(), nil
	case KindInt:
		return t.Int(), nil
	case KindStr:
		return t.Str(), nil
	case KindSym:
		return "sym:" + t.Sym().Name(), nil
	case KindUnit:
		return nil, nil
	case KindNative:
		return nil, fmt.Errorf("cannot serialize %s to JSON", t.Kind())
	case KindBranch:
		subs := make([]any, t.Len())
		for i, sub := range t.Subs() {
			val, err := TermToGo(sub)
			if err != nil {
				return nil, err
			}
			subs[i] = val
		}
		return subs, nil
	default:
		return nil, fmt.Errorf("cannot serialize %s to JSON", t.Kind())
	}
}
