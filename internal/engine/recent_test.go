package engine

import "testing"

func TestRecentDelimitersMostRecentFirst(t *testing.T) {
	r := newRecentDelimiters(5)
	r.add(DelimData)
	r.add(DelimObject)
	r.add(DelimArray)

	if got, ok := r.nthMostRecent(1); !ok || got != DelimArray {
		t.Errorf("nthMostRecent(1) = %v, %v; want DelimArray, true", got, ok)
	}
	if got, ok := r.nthMostRecent(3); !ok || got != DelimData {
		t.Errorf("nthMostRecent(3) = %v, %v; want DelimData, true", got, ok)
	}
}

func TestRecentDelimitersTrimsToCapacity(t *testing.T) {
	r := newRecentDelimiters(2)
	r.add(DelimData)
	r.add(DelimObject)
	r.add(DelimArray)

	if len(r.items) != 2 {
		t.Fatalf("len(items) = %d, want 2", len(r.items))
	}
	if got, _ := r.nthMostRecent(2); got != DelimObject {
		t.Errorf("oldest retained = %v, want DelimObject", got)
	}
}

func TestSecondMostRecentMaterialSkipsCommentAndEscape(t *testing.T) {
	r := newRecentDelimiters(5)
	r.add(DelimData)
	r.add(DelimComment)
	r.add(DelimObject)

	got, ok := r.secondMostRecentMaterial()
	if !ok || got != DelimData {
		t.Errorf("secondMostRecentMaterial = %v, %v; want DelimData, true", got, ok)
	}
}
