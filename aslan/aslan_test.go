package aslan

import "testing"

func TestParseReturnsDefaultField(t *testing.T) {
	n, err := Parse("hello world")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	v, ok := n.MapGet("_default")
	if !ok {
		t.Fatal("missing _default")
	}
	if got, _ := v.AsString(); got != "hello world" {
		t.Errorf("_default = %q, want %q", got, "hello world")
	}
}

func TestParseRejectsEmptyPrefix(t *testing.T) {
	if _, err := Parse("x", WithPrefix("")); err == nil {
		t.Error("expected error for empty prefix, got nil")
	}
}

func TestParseMultiReturnsEachDocument(t *testing.T) {
	input := "[aslang][asland_name]Alice[asland][aslans][aslang][asland_name]Bob[asland][aslans]"
	results, err := ParseMulti(input, WithStrictStart(true), WithStrictEnd(true))
	if err != nil {
		t.Fatalf("ParseMulti: %v", err)
	}
	if len(results) < 2 {
		t.Fatalf("len(results) = %d, want at least 2", len(results))
	}
	name, ok := results[0].MapGet("name")
	if !ok {
		t.Fatal("missing name in first document")
	}
	if got, _ := name.AsString(); got != "Alice" {
		t.Errorf("results[0].name = %q, want %q", got, "Alice")
	}
}

func TestParserListenersFireOnMatchingInstruction(t *testing.T) {
	p, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	var got string
	p.AddContentListener(func(ev *ContentEvent) { got = ev.Content })
	p.Feed("[asland_name][aslani_upper]Alice[asland]")
	p.Close()
	if got != "Alice" {
		t.Errorf("listener content = %q, want %q", got, "Alice")
	}
}
