package engine

import "testing"

func TestNodeCloneIsDeep(t *testing.T) {
	original := NewMapping()
	original.MapSet("tags", NewSequence(Text("a"), Text("b")))

	clone := original.Clone()
	tags, _ := clone.MapGet("tags")
	tags.Sequence[0] = Text("mutated")

	originalTags, _ := original.MapGet("tags")
	if got, _ := originalTags.Sequence[0].AsString(); got != "a" {
		t.Errorf("mutating clone changed original: got %q, want %q", got, "a")
	}
}

func TestNodeGetAtKeySequenceParsesIndex(t *testing.T) {
	seq := NewSequence(Text("x"), Text("y"))
	v, ok := seq.GetAtKey("1")
	if !ok {
		t.Fatal("GetAtKey(1) missing")
	}
	if got, _ := v.AsString(); got != "y" {
		t.Errorf("GetAtKey(1) = %q, want %q", got, "y")
	}
}

func TestNodeSetAtKeyPadsSequenceWithVoid(t *testing.T) {
	seq := NewSequence()
	seq.SetAtKey("2", Text("z"))
	if len(seq.Sequence) != 3 {
		t.Fatalf("len = %d, want 3", len(seq.Sequence))
	}
	if !seq.Sequence[0].IsVoid() || !seq.Sequence[1].IsVoid() {
		t.Error("padding slots should be Void")
	}
}

func TestNodeStringOrDefaultsForNonText(t *testing.T) {
	if got := Void().StringOr("fallback"); got != "fallback" {
		t.Errorf("StringOr on Void = %q, want %q", got, "fallback")
	}
}
