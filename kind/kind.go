// Package kind interns the free-form feature labels slicers leave in gcode
// comments ("Inner wall", "Skirt/brim", ...) into small integers so the
// planner and the estimator can carry them around cheaply and compare them
// with ==.
package kind

import "strings"

// Kind identifies an interned label. The zero value is the first label a
// Tracker interns, so it cannot stand for "no kind"; callers track "no kind"
// with a separate bool or a pointer, matching how the rest of this package
// reports kinds as Kind plus an ok flag.
type Kind uint16

// Tracker interns labels for a single Planner. It is not safe for concurrent
// use, matching the rest of this module's single-threaded, pull-driven
// processing model.
type Tracker struct {
	i2k     map[string]Kind
	k2i     []string
	current Kind
	hasCur  bool
}

// NewTracker returns an empty label interner.
func NewTracker() *Tracker {
	return &Tracker{i2k: make(map[string]Kind)}
}

// Get interns s, returning its Kind. Repeated calls with the same string
// return the same Kind.
func (t *Tracker) Get(s string) Kind {
	if k, ok := t.i2k[s]; ok {
		return k
	}
	k := Kind(len(t.k2i))
	t.i2k[s] = k
	t.k2i = append(t.k2i, s)
	return k
}

// Resolve returns the label a Kind was interned from. It panics if k was
// never produced by this Tracker, mirroring the original's "missing kind"
// expectation that Kind values never escape their Tracker.
func (t *Tracker) Resolve(k Kind) string {
	if int(k) >= len(t.k2i) {
		panic("kind: resolve of unknown kind")
	}
	return t.k2i[k]
}

// FromComment derives a move's Kind from a trailing gcode comment such as
// "; Inner wall". Slicers emit "move to next layer N" comments with a
// varying suffix; those all collapse onto a single "move to next layer"
// label so each layer transition isn't its own feature type. If hasComment
// is false (no comment at all on the line), the most recently set current
// kind (see SetCurrent) applies instead, matching how ideaMaker announces a
// feature once via a bare "TYPE:" line rather than repeating it on every
// move. A present-but-empty or whitespace-only comment still interns its
// own Kind rather than falling back.
func (t *Tracker) FromComment(comment string, hasComment bool) (Kind, bool) {
	if !hasComment {
		return t.current, t.hasCur
	}
	s := strings.TrimSpace(comment)
	if strings.HasPrefix(s, "move to next layer ") {
		s = "move to next layer"
	}
	return t.Get(s), true
}

// SetCurrent records the kind that applies to moves with no comment of
// their own, until the next SetCurrent call.
func (t *Tracker) SetCurrent(k Kind, ok bool) {
	t.current = k
	t.hasCur = ok
}
