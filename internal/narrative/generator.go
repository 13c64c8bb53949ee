// Package narrative implements the offline template-based story mode.
// No model call is involved: segments are picked from fixed template banks,
// sampling without replacement within a story. The generator itself is
// stateless; the client carries the already-used template indices between
// requests, so any server replica can answer any request.
package narrative

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"
)

var (
	// ErrUnknownCategory is returned for a category with no template bank.
	ErrUnknownCategory = errors.New("unknown story category")
	// ErrUnknownPhase is returned for a phase with no template bank.
	ErrUnknownPhase = errors.New("unknown story phase")
)

// Generator picks story templates. Safe for concurrent use.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewGenerator creates a Generator seeded from the clock.
func NewGenerator() *Generator {
	return NewGeneratorWithSeed(time.Now().UnixNano())
}

// NewGeneratorWithSeed creates a Generator with a fixed seed, for tests.
func NewGeneratorWithSeed(seed int64) *Generator {
	return &Generator{rng: rand.New(rand.NewSource(seed))}
}

// CategoryForTags maps an image's tags to a story category. Any image tagged
// "mystery" starts a mystery; everything else is an adventure.
func CategoryForTags(tags []string) Category {
	for _, tag := range tags {
		if tag == string(CategoryMystery) {
			return CategoryMystery
		}
	}
	return CategoryAdventure
}

// Segment is one rendered story segment.
type Segment struct {
	Text string `json:"text"`
	// Index identifies the template used, so the client can report it back
	// in usedIndices on the next request.
	Index int `json:"index"`
}

// Generate renders a segment for the given category and phase, avoiding the
// template indices in used. When every template has been used, it falls back
// to a uniform pick over the whole bank rather than failing.
func (g *Generator) Generate(category Category, phase Phase, imageDesc string, used []int) (*Segment, error) {
	phases, ok := storyTemplates[category]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCategory, category)
	}
	templates, ok := phases[phase]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPhase, phase)
	}

	index := g.pick(len(templates), used)
	text := strings.ReplaceAll(templates[index], imageDescPlaceholder, imageDesc)

	return &Segment{Text: text, Index: index}, nil
}

// pick chooses a template index not present in used. With all n indices
// used it degrades to a uniform pick over all n.
func (g *Generator) pick(n int, used []int) int {
	usedSet := make(map[int]bool, len(used))
	for _, i := range used {
		usedSet[i] = true
	}

	available := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if !usedSet[i] {
			available = append(available, i)
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if len(available) == 0 {
		return g.rng.Intn(n)
	}
	return available[g.rng.Intn(len(available))]
}
