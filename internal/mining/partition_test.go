package mining

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rohankatakam/changeminer/internal/models"
)

func descs(names ...string) []models.MethodDescriptor {
	out := make([]models.MethodDescriptor, len(names))
	for i, n := range names {
		out[i] = models.MethodDescriptor{LongName: n}
	}
	return out
}

func TestPartitionMethods(t *testing.T) {
	touched := descs("A::f()", "A::g()", "A::h()", "A::ghost()")
	before := descs("A::f()", "A::g()", "A::k()")
	current := descs("A::f()", "A::h()", "A::k()")

	p := PartitionMethods(touched, before, current)

	assert.Equal(t, descs("A::f()"), p.Updated)
	assert.Equal(t, descs("A::g()"), p.Obsolete)
	assert.Equal(t, descs("A::h()"), p.New)
	assert.Equal(t, descs("A::ghost()"), p.Inconsistent)
	assert.Equal(t, []string{"A::f()", "A::k()"}, p.BeforeWithoutObsolete)
	assert.Equal(t, []string{"A::f()", "A::k()"}, p.CurrentWithoutNew)
	assert.False(t, p.Empty())
}

func TestPartitionEmptyTouched(t *testing.T) {
	p := PartitionMethods(nil, descs("A::f()"), descs("B::f()"))

	assert.True(t, p.Empty())
	assert.Equal(t, []string{"A::f()"}, p.BeforeWithoutObsolete)
	assert.Equal(t, []string{"B::f()"}, p.CurrentWithoutNew)
}

func TestPartitionCompleteness(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 200; round++ {
		var before, current, touched []models.MethodDescriptor
		for i := 0; i < 12; i++ {
			name := fmt.Sprintf("NS::C::m%d()", i)
			inBefore := rng.Intn(2) == 0
			inCurrent := rng.Intn(2) == 0
			if !inBefore && !inCurrent {
				inCurrent = true
			}
			if inBefore {
				before = append(before, models.MethodDescriptor{LongName: name})
			}
			if inCurrent {
				current = append(current, models.MethodDescriptor{LongName: name})
			}
			if rng.Intn(3) > 0 {
				touched = append(touched, models.MethodDescriptor{LongName: name})
			}
		}

		p := PartitionMethods(touched, before, current)

		seen := make(map[string]int)
		for _, set := range [][]models.MethodDescriptor{p.New, p.Obsolete, p.Updated} {
			for _, m := range set {
				seen[m.LongName]++
			}
		}
		assert.Empty(t, p.Inconsistent)
		assert.Len(t, seen, len(touched), "round %d: union must equal touched", round)
		for name, n := range seen {
			assert.Equal(t, 1, n, "round %d: %s in more than one set", round, name)
		}
	}
}
