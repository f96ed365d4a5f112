package kind

import "testing"

func TestGetInternsAndDeduplicates(t *testing.T) {
	tr := NewTracker()
	a := tr.Get("Inner wall")
	b := tr.Get("Inner wall")
	c := tr.Get("Outer wall")
	if a != b {
		t.Errorf("Get(%q) = %v, then %v; want the same Kind both times", "Inner wall", a, b)
	}
	if a == c {
		t.Errorf("distinct labels interned to the same Kind %v", a)
	}
	if tr.Resolve(a) != "Inner wall" || tr.Resolve(c) != "Outer wall" {
		t.Errorf("Resolve round-trip failed: %q, %q", tr.Resolve(a), tr.Resolve(c))
	}
}

func TestResolvePanicsOnUnknownKind(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected Resolve of an unknown Kind to panic")
		}
	}()
	tr := NewTracker()
	tr.Resolve(Kind(0))
}

func TestFromCommentCollapsesLayerChangeSuffix(t *testing.T) {
	tr := NewTracker()
	k1, ok := tr.FromComment("move to next layer (2)", true)
	if !ok {
		t.Fatal("expected a kind")
	}
	k2, ok := tr.FromComment("move to next layer (17)", true)
	if !ok {
		t.Fatal("expected a kind")
	}
	if k1 != k2 {
		t.Errorf("layer-change comments with different suffixes got distinct kinds: %v vs %v", k1, k2)
	}
	if tr.Resolve(k1) != "move to next layer" {
		t.Errorf("resolved label = %q, want %q", tr.Resolve(k1), "move to next layer")
	}
}

func TestFromCommentFallsBackOnlyWhenNoComment(t *testing.T) {
	tr := NewTracker()
	cur := tr.Get("Infill")
	tr.SetCurrent(cur, true)

	k, ok := tr.FromComment("", false)
	if !ok || k != cur {
		t.Errorf("no-comment FromComment = (%v, %v), want (%v, true) falling back to current", k, ok, cur)
	}

	k, ok = tr.FromComment("", true)
	if !ok {
		t.Fatal("expected a present-but-empty comment to still resolve to a kind")
	}
	if k == cur {
		t.Error("a present-but-empty comment should intern its own kind, not fall back to current")
	}
	if tr.Resolve(k) != "" {
		t.Errorf("resolved label = %q, want empty string", tr.Resolve(k))
	}

	k2, ok := tr.FromComment("   ", true)
	if !ok {
		t.Fatal("expected a whitespace-only comment to still resolve to a kind")
	}
	if k2 != k {
		t.Errorf("whitespace-only comment should trim to the same empty-string kind, got %v want %v", k2, k)
	}
}

func TestFromCommentWithoutSetCurrent(t *testing.T) {
	tr := NewTracker()
	_, ok := tr.FromComment("", false)
	if ok {
		t.Error("expected no kind when there is no comment and SetCurrent was never called")
	}
}
