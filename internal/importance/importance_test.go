package importance

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"influencemap/internal/graph"
)

func TestBuildVocabulary(t *testing.T) {
	s := NewScorer()
	seeds := []*graph.Node{
		graph.NewNode("Plato", "Plato was an ancient Greek philosopher."),
		graph.NewNode("Immanuel Kant", "Kant is a central figure of the Enlightenment"),
	}

	vocab := s.BuildVocabulary(seeds)

	for _, term := range []string{"plato", "ancient", "greek", "philosopher.", "immanuel", "kant", "central", "enlightenment"} {
		assert.True(t, vocab.Contains(term), term)
	}
	for _, stop := range []string{"was", "an", "is", "a", "of", "the"} {
		assert.False(t, vocab.Contains(stop), stop)
	}
}

func TestScore(t *testing.T) {
	s := NewScorer()
	vocab := s.BuildVocabulary([]*graph.Node{graph.NewNode("Logic", "Logic studies correct reasoning")})

	assert.Equal(t, 0, s.Score("", vocab))
	assert.Equal(t, 1, s.Score("Astronomy studies stars", vocab), "only 'studies' overlaps")
	assert.Equal(t, 3, s.Score("LOGIC and logic with reasoning", vocab), "case-insensitive, counted per occurrence")
	assert.Equal(t, 0, s.Score("the and of", vocab))
}

func TestScorer_ExtraStopWords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stop.txt")
	require.NoError(t, os.WriteFile(path, []byte("Philosopher\n\nGreek\n"), 0o644))

	s := NewScorer("ancient")
	require.NoError(t, s.LoadStopWords(path))

	assert.True(t, s.IsStopWord("ANCIENT"))
	assert.True(t, s.IsStopWord("greek"))
	assert.True(t, s.IsStopWord("the"))

	vocab := s.BuildVocabulary([]*graph.Node{graph.NewNode("Plato", "ancient greek philosopher")})
	assert.Len(t, vocab, 1)
	assert.True(t, vocab.Contains("plato"))
}

func TestScorer_EmbeddedStopWordsLoadCompletely(t *testing.T) {
	s := &Scorer{stop: make(map[string]struct{})}
	require.NoError(t, s.addWords(strings.NewReader(englishStopWords)))

	want := make(map[string]struct{})
	for _, line := range strings.Split(englishStopWords, "\n") {
		if w := strings.ToLower(strings.TrimSpace(line)); w != "" {
			want[w] = struct{}{}
		}
	}
	assert.Equal(t, want, s.stop)
	assert.Equal(t, len(want), len(NewScorer().stop))
}
