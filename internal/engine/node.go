// Package engine implements the ASLAN character-by-character parser: the
// state machine that recognizes delimiters and mutates a result tree as
// input arrives.
package engine

import (
	"bytes"
	"encoding/json"
	"strconv"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Kind identifies which variant of the tagged union a Node holds.
type Kind int

const (
	KindText Kind = iota
	KindVoid
	KindMapping
	KindSequence
	KindAbsent
)

// Node is the mutating output value: a string, the explicit Void sentinel,
// an insertion-ordered mapping, a dense sequence, or Absent (a lookup that
// found nothing — never stored).
type Node struct {
	Kind     Kind
	Text     string
	Mapping  *orderedmap.OrderedMap[string, Node]
	Sequence []Node
}

// Text returns a scalar string node.
func Text(s string) Node { return Node{Kind: KindText, Text: s} }

// Void returns the explicit null-like sentinel node.
func Void() Node { return Node{Kind: KindVoid} }

// Absent returns the not-present marker used for lookups, never stored.
func Absent() Node { return Node{Kind: KindAbsent} }

// NewMapping returns an empty mapping node.
func NewMapping() Node {
	return Node{Kind: KindMapping, Mapping: orderedmap.New[string, Node]()}
}

// NewSequence returns an empty sequence node, optionally pre-populated.
func NewSequence(items ...Node) Node {
	seq := make([]Node, len(items))
	copy(seq, items)
	return Node{Kind: KindSequence, Sequence: seq}
}

func (n Node) IsObject() bool    { return n.Kind == KindMapping }
func (n Node) IsArray() bool     { return n.Kind == KindSequence }
func (n Node) IsContainer() bool { return n.IsObject() || n.IsArray() }
func (n Node) IsVoid() bool      { return n.Kind == KindVoid }
func (n Node) IsAbsent() bool    { return n.Kind == KindAbsent }
func (n Node) IsString() bool    { return n.Kind == KindText }

// AsString returns the scalar text and true, if this node is a Text node.
func (n Node) AsString() (string, bool) {
	if n.Kind == KindText {
		return n.Text, true
	}
	return "", false
}

// StringOr returns the scalar text, or the given default for any other kind.
func (n Node) StringOr(def string) string {
	if s, ok := n.AsString(); ok {
		return s
	}
	return def
}

// MapGet looks up key in a Mapping node.
func (n Node) MapGet(key string) (Node, bool) {
	if n.Kind != KindMapping || n.Mapping == nil {
		return Absent(), false
	}
	return n.Mapping.Get(key)
}

// MapSet inserts or overwrites key in a Mapping node.
func (n Node) MapSet(key string, v Node) {
	if n.Kind != KindMapping {
		return
	}
	if n.Mapping == nil {
		n.Mapping = orderedmap.New[string, Node]()
	}
	n.Mapping.Set(key, v)
}

// SeqGet looks up an index in a Sequence node.
func (n Node) SeqGet(idx int) (Node, bool) {
	if n.Kind != KindSequence || idx < 0 || idx >= len(n.Sequence) {
		return Absent(), false
	}
	return n.Sequence[idx], true
}

// SeqSet writes idx in a Sequence node, padding with Void as needed.
func (n *Node) SeqSet(idx int, v Node) {
	if n.Kind != KindSequence || idx < 0 {
		return
	}
	for len(n.Sequence) <= idx {
		n.Sequence = append(n.Sequence, Void())
	}
	n.Sequence[idx] = v
}

// SeqAppend appends v to the end of a Sequence node.
func (n *Node) SeqAppend(v Node) {
	if n.Kind != KindSequence {
		return
	}
	n.Sequence = append(n.Sequence, v)
}

// GetAtKey looks up a string-form key against either a Mapping (direct key
// lookup) or a Sequence (the key is parsed as a decimal index).
func (n Node) GetAtKey(key string) (Node, bool) {
	switch n.Kind {
	case KindMapping:
		return n.MapGet(key)
	case KindSequence:
		idx, err := strconv.Atoi(key)
		if err != nil {
			return Absent(), false
		}
		return n.SeqGet(idx)
	default:
		return Absent(), false
	}
}

// SetAtKey writes a string-form key against either a Mapping (direct key
// write) or a Sequence (the key is parsed as a decimal index, padding with
// Void as needed).
func (n *Node) SetAtKey(key string, v Node) {
	switch n.Kind {
	case KindMapping:
		n.MapSet(key, v)
	case KindSequence:
		if idx, err := strconv.Atoi(key); err == nil {
			n.SeqSet(idx, v)
		}
	}
}

// AppendAtKey appends v to the Sequence stored under key, whether the
// receiver itself is a Mapping (key names a Sequence-valued field) or a
// Sequence (key names an index holding a nested Sequence).
func (n *Node) AppendAtKey(key string, v Node) {
	switch n.Kind {
	case KindMapping:
		if n.Mapping == nil {
			return
		}
		if existing, ok := n.Mapping.Get(key); ok && existing.Kind == KindSequence {
			existing.Sequence = append(existing.Sequence, v)
			n.Mapping.Set(key, existing)
		}
	case KindSequence:
		idx, err := strconv.Atoi(key)
		if err != nil || idx < 0 || idx >= len(n.Sequence) {
			return
		}
		if n.Sequence[idx].Kind == KindSequence {
			n.Sequence[idx].Sequence = append(n.Sequence[idx].Sequence, v)
		}
	}
}

// Clone deep-copies a Node. This lives on the type itself, rather than as a
// separate collaborator package, to avoid a circular import between this
// package and any helper that would otherwise need to know Node's shape.
func (n Node) Clone() Node {
	switch n.Kind {
	case KindMapping:
		out := NewMapping()
		if n.Mapping != nil {
			for pair := n.Mapping.Oldest(); pair != nil; pair = pair.Next() {
				out.Mapping.Set(pair.Key, pair.Value.Clone())
			}
		}
		return out
	case KindSequence:
		items := make([]Node, len(n.Sequence))
		for i, v := range n.Sequence {
			items[i] = v.Clone()
		}
		return Node{Kind: KindSequence, Sequence: items}
	default:
		return n
	}
}

// MarshalJSON projects a Node onto its natural JSON shape: strings for
// Text, null for Void and Absent, objects for Mapping (key order
// preserved), arrays for Sequence.
func (n Node) MarshalJSON() ([]byte, error) {
	switch n.Kind {
	case KindText:
		return json.Marshal(n.Text)
	case KindVoid, KindAbsent:
		return []byte("null"), nil
	case KindSequence:
		return json.Marshal(n.Sequence)
	case KindMapping:
		var buf bytes.Buffer
		buf.WriteByte('{')
		if n.Mapping != nil {
			first := true
			for pair := n.Mapping.Oldest(); pair != nil; pair = pair.Next() {
				if !first {
					buf.WriteByte(',')
				}
				first = false
				keyBytes, err := json.Marshal(pair.Key)
				if err != nil {
					return nil, err
				}
				buf.Write(keyBytes)
				buf.WriteByte(':')
				valBytes, err := json.Marshal(pair.Value)
				if err != nil {
					return nil, err
				}
				buf.Write(valBytes)
			}
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	default:
		return []byte("null"), nil
	}
}
