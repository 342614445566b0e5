package engine

import "testing"

func parseOne(t *testing.T, input string, settings Settings) Node {
	t.Helper()
	e := New(settings, testIDGen{})
	e.Feed(input)
	e.Close()
	return e.Result()
}

type testIDGen struct{}

func (testIDGen) Generate() string { return "test-id" }

func mapText(t *testing.T, n Node, key string) string {
	t.Helper()
	v, ok := n.MapGet(key)
	if !ok {
		t.Fatalf("missing key %q", key)
	}
	s, ok := v.AsString()
	if !ok {
		t.Fatalf("key %q is not a string, got %+v", key, v)
	}
	return s
}

func TestDefaultFieldPlainText(t *testing.T) {
	n := parseOne(t, "hello world", DefaultSettings())
	if got := mapText(t, n, "_default"); got != "hello world" {
		t.Errorf("_default = %q, want %q", got, "hello world")
	}
}

func TestDataDelimiterSetsNamedField(t *testing.T) {
	n := parseOne(t, "[asland_name]Alice[asland]", DefaultSettings())
	if got := mapText(t, n, "name"); got != "Alice" {
		t.Errorf("name = %q, want %q", got, "Alice")
	}
}

func TestDataDelimiterDefaultAppendsOnDuplicate(t *testing.T) {
	n := parseOne(t, "[asland_name]Alice[asland][asland_name]Bob[asland]", DefaultSettings())
	if got := mapText(t, n, "name"); got != "AliceBob" {
		t.Errorf("name = %q, want %q", got, "AliceBob")
	}
}

func TestDataDelimiterKeepFirstLocksValue(t *testing.T) {
	n := parseOne(t, "[asland_name:f]Alice[asland][asland_name]Bob[asland]", DefaultSettings())
	if got := mapText(t, n, "name"); got != "Alice" {
		t.Errorf("name = %q, want %q", got, "Alice")
	}
}

func TestDataDelimiterKeepLastWipesEarlierValue(t *testing.T) {
	n := parseOne(t, "[asland_name:l]Alice[asland][asland_name:l]Bob[asland]", DefaultSettings())
	if got := mapText(t, n, "name"); got != "Bob" {
		t.Errorf("name = %q, want %q", got, "Bob")
	}
}

func TestDataDelimiterAppendPolicyUsesSeparator(t *testing.T) {
	settings := DefaultSettings()
	settings.AppendSeparator = ", "
	n := parseOne(t, "[asland_name:a]Alice[asland][asland_name:a]Bob[asland]", settings)
	if got := mapText(t, n, "name"); got != "Alice, Bob" {
		t.Errorf("name = %q, want %q", got, "Alice, Bob")
	}
}

func TestVoidDelimiterClearsField(t *testing.T) {
	n := parseOne(t, "[asland_name]Alice[aslanv][asland]", DefaultSettings())
	v, ok := n.MapGet("name")
	if !ok {
		t.Fatal("missing key name")
	}
	if !v.IsVoid() {
		t.Errorf("name = %+v, want Void", v)
	}
}

func TestObjectDelimiterOpensNestedMapping(t *testing.T) {
	n := parseOne(t, "[asland_user][aslano][asland_name]Alice[asland][aslano]", DefaultSettings())
	user, ok := n.MapGet("user")
	if !ok || !user.IsObject() {
		t.Fatalf("user = %+v, want object", user)
	}
	if got := mapText(t, user, "name"); got != "Alice" {
		t.Errorf("user.name = %q, want %q", got, "Alice")
	}
}

func TestArrayDelimiterAppendsImplicitIndices(t *testing.T) {
	n := parseOne(t, "[asland_tags][aslana][asland]a[asland]b[aslana]", DefaultSettings())
	tags, ok := n.MapGet("tags")
	if !ok || !tags.IsArray() {
		t.Fatalf("tags = %+v, want array", tags)
	}
	if len(tags.Sequence) != 2 {
		t.Fatalf("len(tags) = %d, want 2", len(tags.Sequence))
	}
	if got, _ := tags.Sequence[0].AsString(); got != "a" {
		t.Errorf("tags[0] = %q, want %q", got, "a")
	}
	if got, _ := tags.Sequence[1].AsString(); got != "b" {
		t.Errorf("tags[1] = %q, want %q", got, "b")
	}
}

func TestArrayDelimiterExplicitIndex(t *testing.T) {
	n := parseOne(t, "[asland_tags][aslana][asland_5]e[asland]a[aslana]", DefaultSettings())
	tags, _ := n.MapGet("tags")
	if len(tags.Sequence) != 7 {
		t.Fatalf("len(tags) = %d, want 7", len(tags.Sequence))
	}
	if got, _ := tags.Sequence[5].AsString(); got != "e" {
		t.Errorf("tags[5] = %q, want %q", got, "e")
	}
	if got, _ := tags.Sequence[6].AsString(); got != "a" {
		t.Errorf("tags[6] = %q, want %q", got, "a")
	}
}

func TestPartDelimiterStartsImplicitArray(t *testing.T) {
	n := parseOne(t, "[asland_bio]part one[aslanp]part two[asland]", DefaultSettings())
	bio, ok := n.MapGet("bio")
	if !ok || !bio.IsArray() {
		t.Fatalf("bio = %+v, want array", bio)
	}
	if len(bio.Sequence) != 2 {
		t.Fatalf("len(bio) = %d, want 2", len(bio.Sequence))
	}
	if got, _ := bio.Sequence[0].AsString(); got != "part one" {
		t.Errorf("bio[0] = %q, want %q", got, "part one")
	}
	if got, _ := bio.Sequence[1].AsString(); got != "part two" {
		t.Errorf("bio[1] = %q, want %q", got, "part two")
	}
}

func TestCommentDelimiterDiscardsContent(t *testing.T) {
	n := parseOne(t, "before[aslanc]hidden text[asland]after", DefaultSettings())
	if got := mapText(t, n, "_default"); got != "beforeafter" {
		t.Errorf("_default = %q, want %q", got, "beforeafter")
	}
}

func TestEscapeDelimiterPassesDelimiterTextThrough(t *testing.T) {
	n := parseOne(t, "[aslane_x][asland_name]Alice[asland][aslane_x]", DefaultSettings())
	if got := mapText(t, n, "_default"); got != "[asland_name]Alice[asland]" {
		t.Errorf("_default = %q, want literal escaped text", got)
	}
}

func TestEscapeDelimiterIgnoresNonMatchingCloseTag(t *testing.T) {
	n := parseOne(t, "[aslane_x]abc[aslane_other]def[aslane_x]", DefaultSettings())
	want := "abc[aslane_other]def"
	if got := mapText(t, n, "_default"); got != want {
		t.Errorf("_default = %q, want %q", got, want)
	}
}

func TestDelimiterLikeTextThatNeverCompletesIsAppended(t *testing.T) {
	n := parseOne(t, "not a delimiter [aslan but incomplete", DefaultSettings())
	want := "not a delimiter [aslan but incomplete"
	if got := mapText(t, n, "_default"); got != want {
		t.Errorf("_default = %q, want %q", got, want)
	}
}

func TestInstructionDelimiterFiresContentEvent(t *testing.T) {
	// Content events fire once at registration and again as each character
	// of the field accumulates, so only the final, fully-accumulated event
	// is asserted here.
	settings := DefaultSettings()
	e := New(settings, testIDGen{})
	var fired []string
	e.AddContentListener(func(ev *Event) {
		fired = append(fired, ev.Instruction+":"+ev.Content)
	})
	e.Feed("[asland_name][aslani_upper]Alice[asland]")
	e.Close()
	if len(fired) == 0 {
		t.Fatal("fired = [], want at least one event")
	}
	if last := fired[len(fired)-1]; last != "upper:Alice" {
		t.Errorf("last fired = %q, want %q", last, "upper:Alice")
	}
}

func TestInstructionWithNoMatchFiresNoEvent(t *testing.T) {
	settings := DefaultSettings()
	e := New(settings, testIDGen{})
	called := false
	e.AddContentListener(func(ev *Event) { called = true })
	e.Feed("plain text with no instructions")
	e.Close()
	if called {
		t.Error("listener fired with no registered instruction")
	}
}

func TestMultiDocumentGoStopFraming(t *testing.T) {
	settings := DefaultSettings()
	settings.StrictStart = true
	settings.StrictEnd = true
	settings.MultiDocumentOutput = true
	e := New(settings, testIDGen{})
	e.Feed("[aslang][asland_name]Alice[asland][aslans][aslang][asland_name]Bob[asland][aslans]")
	e.Close()
	results := e.Results()
	if len(results) < 2 {
		t.Fatalf("len(results) = %d, want at least 2", len(results))
	}
	if got := mapText(t, results[0], "name"); got != "Alice" {
		t.Errorf("results[0].name = %q, want %q", got, "Alice")
	}
	if got := mapText(t, results[1], "name"); got != "Bob" {
		t.Errorf("results[1].name = %q, want %q", got, "Bob")
	}
}

func TestStrictStartLocksOutContentBeforeGo(t *testing.T) {
	settings := DefaultSettings()
	settings.StrictStart = true
	n := parseOne(t, "ignored before start[aslang][asland_name]Alice[asland]", settings)
	if got := mapText(t, n, "name"); got != "Alice" {
		t.Errorf("name = %q, want %q", got, "Alice")
	}
	// Nothing before [aslang] reaches _default, so it is demoted to Void
	// when the first named key appears.
	if def, _ := n.MapGet("_default"); !def.IsVoid() {
		t.Errorf("_default = %+v, want Void (locked out)", def)
	}
}

func TestCloseContainerAtRootDepthIsNoOp(t *testing.T) {
	// A bare [aslano] at the root, with nothing substantial written to
	// _default yet, has no parent to pop into: it must neither create a
	// nested mapping nor mutate the tree at all.
	n := parseOne(t, "[aslano]", DefaultSettings())
	if got := mapText(t, n, "_default"); got != "" {
		t.Errorf("_default = %q, want empty", got)
	}
}

func TestMaxObjectDepthForcesCloseAtLimit(t *testing.T) {
	settings := DefaultSettings()
	settings.MaxObjectDepth = 1
	n := parseOne(t, "[asland_a][aslano][asland_b]x[asland][aslano]after", settings)
	if a, ok := n.MapGet("a"); ok && a.IsContainer() {
		t.Errorf("a = %+v, want no container (object open suppressed at depth limit)", a)
	}
	if got := mapText(t, n, "b"); got != "xafter" {
		t.Errorf("b = %q, want %q (written at the root)", got, "xafter")
	}
}

func TestChunkedFeedMatchesSingleFeed(t *testing.T) {
	input := "[asland_name]Alice[asland][asland_tags][aslana][asland]a[asland]b[aslana]"
	whole := parseOne(t, input, DefaultSettings())

	e := New(DefaultSettings(), testIDGen{})
	for _, r := range input {
		e.Feed(string(r))
	}
	e.Close()
	chunked := e.Result()

	if mapText(t, whole, "name") != mapText(t, chunked, "name") {
		t.Errorf("chunked name mismatch: %q vs %q", mapText(t, chunked, "name"), mapText(t, whole, "name"))
	}
}

func TestResetStartsFreshDocument(t *testing.T) {
	e := New(DefaultSettings(), testIDGen{})
	e.Feed("[asland_name]Alice[asland]")
	e.Reset()
	e.Feed("[asland_name]Bob[asland]")
	e.Close()
	if got := mapText(t, e.Result(), "name"); got != "Bob" {
		t.Errorf("name = %q, want %q", got, "Bob")
	}
}
