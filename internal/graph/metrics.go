package graph

// Degrees counts, per title, how many edges touch it as source or destination.
func Degrees(edges []Edge) map[string]int {
	counts := make(map[string]int)
	for _, e := range edges {
		counts[e.Src.Title]++
		counts[e.Dest.Title]++
	}
	return counts
}
