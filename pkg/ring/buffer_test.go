package ring

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRoundsUp(t *testing.T) {
	testCases := []struct {
		size   int
		expect int
	}{
		{0, MinSize},
		{1, MinSize},
		{2, 2},
		{3, 4},
		{500, 512},
		{512, 512},
	}
	for _, tc := range testCases {
		require.Equal(t, tc.expect, New(tc.size).Cap(), "size %d", tc.size)
	}
}

func TestCapacityLimit(t *testing.T) {
	require.Equal(t, uint32(MaxSize), capacityFor(MaxSize))
	require.Equal(t, uint32(MaxSize), capacityFor(MaxSize+1))
	require.Equal(t, uint32(MaxSize), capacityFor(int(^uint(0)>>1)))
}

func TestPutGetOrder(t *testing.T) {
	b := New(4)
	require.True(t, b.Empty())
	for _, v := range []byte("abc") {
		require.True(t, b.Put(v))
	}
	require.Equal(t, 3, b.Len())
	for _, v := range []byte("abc") {
		got, ok := b.Get()
		require.True(t, ok)
		require.Equal(t, v, got)
	}
	_, ok := b.Get()
	require.False(t, ok)
}

func TestOverflowDrops(t *testing.T) {
	b := New(4)
	for _, v := range []byte("abcd") {
		require.True(t, b.Put(v))
	}
	require.True(t, b.Full())
	require.False(t, b.Put('e'))
	require.False(t, b.Put('f'))
	require.Equal(t, uint64(2), b.Dropped())
	require.Equal(t, 4, b.Len())

	buf := make([]byte, 8)
	n := b.Read(buf)
	require.Equal(t, "abcd", string(buf[:n]))
	require.True(t, b.Put('g'))
	v, ok := b.Get()
	require.True(t, ok)
	require.Equal(t, byte('g'), v)
}

func TestWrapAround(t *testing.T) {
	b := New(4)
	for i := 0; i < 1000; i++ {
		require.True(t, b.Put(byte(i)))
		require.True(t, b.Put(byte(i+1)))
		v, ok := b.Get()
		require.True(t, ok)
		require.Equal(t, byte(i), v)
		v, ok = b.Get()
		require.True(t, ok)
		require.Equal(t, byte(i+1), v)
	}
	require.True(t, b.Empty())
}

func TestReset(t *testing.T) {
	b := New(8)
	b.Put(1)
	b.Put(2)
	b.Reset()
	require.True(t, b.Empty())
	require.True(t, b.Put(3))
	v, _ := b.Get()
	require.Equal(t, byte(3), v)
}

func TestSingleProducerSingleConsumer(t *testing.T) {
	const total = 100000
	b := New(4)
	var wg sync.WaitGroup
	stop := make(chan struct{})
	observed := make(chan int, 1)
	go func() {
		// Len is read concurrently by Flush and Stats.
		bad := -1
		for {
			select {
			case <-stop:
				observed <- bad
				return
			default:
			}
			if n := b.Len(); n < 0 || n > b.Cap() {
				bad = n
			}
		}
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < total; {
			if b.Put(byte(i)) {
				i++
			}
		}
	}()
	for i := 0; i < total; {
		v, ok := b.Get()
		if !ok {
			continue
		}
		require.Equal(t, byte(i), v)
		i++
	}
	wg.Wait()
	close(stop)
	require.Equal(t, -1, <-observed, "Len out of [0, Cap]")
	require.True(t, b.Empty())
}
