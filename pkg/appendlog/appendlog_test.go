package appendlog

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tempolabs/corelib/internal/chunkedseq"
)

// scenario A from the concurrency property suite: chunk size 4, values
// 0..9 under one key, get returns them in order, size is 10, and the
// chunk directory has grown to at least 3 entries.
func TestScenarioA_AppendAndGrowth(t *testing.T) {
	al := New[string, int](Config{ChunkSize: 4}, nil, nil)

	for i := 0; i < 10; i++ {
		require.NoError(t, al.Add("k", i))
	}

	got, err := al.Get("k")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, got)
	assert.EqualValues(t, 10, al.Size())

	ca, ok := al.keys.Load("k")
	require.True(t, ok)
	assert.GreaterOrEqual(t, ca.(*chunkedseq.Array[int]).DirectorySize(), 3)
}

// scenario B: 8 threads each append 100,000 values to disjoint keys;
// total size is 800,000 and every key's sequence has the expected
// length, with no torn or lost writes.
func TestScenarioB_ConcurrentDisjointKeys(t *testing.T) {
	al := New[int, int](Config{ChunkSize: 64}, nil, nil)

	const producers = 8
	const perProducer = 100_000

	var wg sync.WaitGroup
	wg.Add(producers)
	for p := 0; p < producers; p++ {
		p := p
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				require.NoError(t, al.Add(p, i))
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, producers*perProducer, al.Size())
	for p := 0; p < producers; p++ {
		vs, err := al.Get(p)
		require.NoError(t, err)
		assert.Len(t, vs, perProducer)
		for i, v := range vs {
			assert.Equal(t, i, v)
		}
	}
}

func TestNullKey(t *testing.T) {
	al := New[*string, int](Config{}, nil, nil)

	err := al.Add(nil, 1)
	assert.ErrorIs(t, err, ErrNullKey)

	_, err = al.Get(nil)
	assert.ErrorIs(t, err, ErrNullKey)
}

func TestAddAllPositional(t *testing.T) {
	al := New[string, int](Config{ChunkSize: 4}, nil, nil)

	require.NoError(t, al.AddAll("k", []int{0, 1, 2, 3, 4, 5}))
	got, err := al.Get("k")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, got)
}

// invariant 1: monotonicity of get across concurrent writers.
func TestMonotonicity(t *testing.T) {
	al := New[string, int](Config{ChunkSize: 8}, nil, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 5000; i++ {
			_ = al.Add("k", i)
		}
	}()

	var prev []int
	for {
		select {
		case <-done:
			return
		default:
		}
		cur, err := al.Get("k")
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(cur), len(prev))
		for i := range prev {
			require.Equal(t, prev[i], cur[i])
		}
		prev = cur
	}
}

func TestKeySetAndCount(t *testing.T) {
	al := New[string, int](Config{}, nil, nil)
	require.NoError(t, al.Add("a", 1))
	require.NoError(t, al.Add("b", 2))
	require.NoError(t, al.Add("a", 3))

	assert.EqualValues(t, 2, al.KeyCount())
	assert.ElementsMatch(t, []string{"a", "b"}, al.KeySet())
}

func TestForEach(t *testing.T) {
	al := New[string, int](Config{}, nil, nil)
	require.NoError(t, al.Add("a", 1))
	require.NoError(t, al.Add("a", 2))

	seen := map[string][]int{}
	al.ForEach(func(k string, values <-chan int) {
		for v := range values {
			seen[k] = append(seen[k], v)
		}
	})
	assert.Equal(t, []int{1, 2}, seen["a"])
}
