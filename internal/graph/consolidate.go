package graph

import "strings"

type endpoint int

const (
	src endpoint = iota
	dest
)

// containment is one "a's endpoint is a substring of b's endpoint" test.
// aContained is false when the test runs the other way round.
type containment struct {
	aEnd       endpoint
	bEnd       endpoint
	aContained bool
}

// consolidationOrder is evaluated first-match: A.src⊂B.src, B.src⊂A.src,
// A.src⊂B.dest, B.dest⊂A.src, A.dest⊂B.dest, B.dest⊂A.dest, A.dest⊂B.src,
// B.src⊂A.dest.
var consolidationOrder = []containment{
	{aEnd: src, bEnd: src, aContained: true},
	{aEnd: src, bEnd: src, aContained: false},
	{aEnd: src, bEnd: dest, aContained: true},
	{aEnd: src, bEnd: dest, aContained: false},
	{aEnd: dest, bEnd: dest, aContained: true},
	{aEnd: dest, bEnd: dest, aContained: false},
	{aEnd: dest, bEnd: src, aContained: true},
	{aEnd: dest, bEnd: src, aContained: false},
}

func (e Edge) end(which endpoint) *Node {
	if which == src {
		return e.Src
	}
	return e.Dest
}

func (e Edge) other(which endpoint) *Node {
	if which == src {
		return e.Dest
	}
	return e.Src
}

func normalizeTitle(t string) string {
	return strings.ToLower(strings.TrimSpace(t))
}

// Consolidate merges two edges that appear to name the same concept under
// different titles. When an endpoint title of one edge is contained in an
// endpoint title of the other, those endpoints are treated as one page: a new
// edge joins the two remaining endpoints and exactly one input edge is kept.
// The edge owning the contained title is kept and the new edge takes the
// other input's weight. With no containment both inputs are returned.
func Consolidate(a, b Edge) []Edge {
	for _, c := range consolidationOrder {
		at := normalizeTitle(a.end(c.aEnd).Title)
		bt := normalizeTitle(b.end(c.bEnd).Title)

		var hit bool
		if c.aContained {
			hit = strings.Contains(bt, at)
		} else {
			hit = strings.Contains(at, bt)
		}
		if !hit {
			continue
		}

		joined := Edge{Src: a.other(c.aEnd), Dest: b.other(c.bEnd)}
		if c.aContained {
			joined.Weight = b.Weight
			return []Edge{joined, a}
		}
		joined.Weight = a.Weight
		return []Edge{joined, b}
	}
	return []Edge{a, b}
}
