package id

import (
	"bytes"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSessionID(t *testing.T) {
	g := NewGenerator()
	sid := g.NewSessionID()

	assert.True(t, strings.HasPrefix(string(sid), "term_"))
	assert.Len(t, string(sid), len("term_")+26)

	_, err := ParseSessionID(sid.String())
	assert.NoError(t, err)
}

func TestParseSessionID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid", "term_01ARZ3NDEKTSV4RRFFQ69G5FAV", false},
		{"missing prefix", "01ARZ3NDEKTSV4RRFFQ69G5FAV", true},
		{"wrong prefix", "sess_01ARZ3NDEKTSV4RRFFQ69G5FAV", true},
		{"bad ulid", "term_not-a-ulid", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSessionID(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDeterministicGenerator(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	newGen := func() *Generator {
		return NewGeneratorWithEntropy(bytes.NewReader(bytes.Repeat([]byte{7}, 64)), func() time.Time { return fixed })
	}

	a := newGen().NewSessionID()
	b := newGen().NewSessionID()

	assert.Equal(t, a, b)
	assert.True(t, fixed.Equal(a.Time()))
}

func TestSessionIDTimeMalformed(t *testing.T) {
	assert.True(t, SessionID("garbage").Time().IsZero())
}

func TestConcurrentGenerationIsUniqueAndSorted(t *testing.T) {
	g := NewGenerator()

	const n = 500
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i] = string(g.NewSessionID())
		}(i)
	}
	wg.Wait()

	seen := make(map[string]struct{}, n)
	for _, s := range ids {
		seen[s] = struct{}{}
	}
	require.Len(t, seen, n)

	var sequential []string
	for i := 0; i < 20; i++ {
		sequential = append(sequential, string(g.NewSessionID()))
	}
	assert.True(t, sort.StringsAreSorted(sequential))
}

func BenchmarkNewSessionID(b *testing.B) {
	g := NewGenerator()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = g.NewSessionID()
	}
}
