package chunkedseq

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAndSnapshot(t *testing.T) {
	a := NewArray[int](4)
	for i := 0; i < 10; i++ {
		idx := a.Append(i)
		assert.EqualValues(t, i, idx)
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, a.Snapshot())
	assert.GreaterOrEqual(t, a.DirectorySize(), 3)
}

func TestAppendAllPositional(t *testing.T) {
	a := NewArray[int](4)
	start := a.AppendAll([]int{0, 1, 2, 3, 4})
	assert.EqualValues(t, 0, start)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, a.Snapshot())
}

func TestSnapshotRange(t *testing.T) {
	a := NewArray[int](4)
	for i := 0; i < 10; i++ {
		a.Append(i)
	}
	assert.Equal(t, []int{2, 3, 4}, a.SnapshotRange(2, 5))
	assert.Equal(t, []int{}, a.SnapshotRange(10, 10))
	assert.Equal(t, []int{9}, a.SnapshotRange(9, 100))
}

func TestConcurrentAppend(t *testing.T) {
	a := NewArray[int](8)
	const producers = 8
	const perProducer = 5000

	var wg sync.WaitGroup
	wg.Add(producers)
	for p := 0; p < producers; p++ {
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				a.Append(i)
			}
		}()
	}
	wg.Wait()

	require.EqualValues(t, producers*perProducer, a.Size())
	assert.Len(t, a.Snapshot(), producers*perProducer)
}
