package pagecache

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openvault/docpipeline/internal/storage"
)

// countingSource tracks how many reads reach the underlying data.
type countingSource struct {
	*BytesSource
	reads int
}

func (s *countingSource) ReadAt(p []byte, off int64) (int, error) {
	s.reads++
	return s.BytesSource.ReadAt(p, off)
}

func testData() []byte {
	data := make([]byte, 4096)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}

func TestRecordThenReplay(t *testing.T) {
	data := testData()
	cache := NewCache()

	recorder := NewReader(NewBytesSource(data), cache, Record)
	buf := make([]byte, 100)
	_, err := recorder.ReadAt(buf, 500)
	require.NoError(t, err)
	_, err = recorder.ReadAt(buf[:32], 0)
	require.NoError(t, err)
	assert.Equal(t, 2, cache.Len())

	// Replay must serve the identical reads without touching the source.
	source := &countingSource{BytesSource: NewBytesSource(data)}
	replayer := NewReader(source, cache, Replay)

	got := make([]byte, 100)
	n, err := replayer.ReadAt(got, 500)
	require.NoError(t, err)
	assert.Equal(t, data[500:600], got[:n])
	assert.Zero(t, source.reads)
}

func TestReplayMissFallsThroughWithoutRecording(t *testing.T) {
	data := testData()
	cache := NewCache()

	source := &countingSource{BytesSource: NewBytesSource(data)}
	replayer := NewReader(source, cache, Replay)

	buf := make([]byte, 64)
	n, err := replayer.ReadAt(buf, 128)
	require.NoError(t, err)
	assert.Equal(t, data[128:192], buf[:n])
	assert.Equal(t, 1, source.reads)
	assert.Zero(t, cache.Len(), "miss must not grow the cache")
}

func TestExactKeyMatching(t *testing.T) {
	data := testData()
	cache := NewCache()

	recorder := NewReader(NewBytesSource(data), cache, Record)
	buf := make([]byte, 100)
	_, err := recorder.ReadAt(buf, 500)
	require.NoError(t, err)

	// Same offset, different length is a different key.
	_, ok := cache.Get(Key{Offset: 500, Length: 50})
	assert.False(t, ok)
	_, ok = cache.Get(Key{Offset: 500, Length: 100})
	assert.True(t, ok)
}

func TestReaderSeekAndRead(t *testing.T) {
	data := testData()
	r := NewReader(NewBytesSource(data), nil, Passthrough)

	pos, err := r.Seek(-16, io.SeekEnd)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)-16), pos)

	tail, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, data[len(data)-16:], tail)
}

func TestCacheSaveLoad(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemStore()

	cache := NewCache()
	cache.Put(Key{Offset: 0, Length: 4}, []byte("head"))
	cache.Put(Key{Offset: 900, Length: 4}, []byte("tail"))
	require.NoError(t, cache.Save(ctx, store, "bucket/documents/1/doc.index"))

	loaded, err := Load(ctx, store, "bucket/documents/1/doc.index")
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Len())
	data, ok := loaded.Get(Key{Offset: 900, Length: 4})
	require.True(t, ok)
	assert.Equal(t, []byte("tail"), data)
}

func TestLoadMissingIndexFailsLoud(t *testing.T) {
	_, err := Load(context.Background(), storage.NewMemStore(), "bucket/documents/1/doc.index")
	assert.ErrorIs(t, err, ErrMissingIndex)
}

func TestLoadCorruptIndexFailsLoud(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemStore()
	require.NoError(t, store.Upload(ctx, "bucket/documents/1/doc.index", []byte("not gzip")))

	_, err := Load(ctx, store, "bucket/documents/1/doc.index")
	assert.ErrorIs(t, err, ErrMissingIndex)
}

func TestCacheRoundTripStream(t *testing.T) {
	cache := NewCache()
	cache.Put(Key{Offset: 7, Length: 3}, []byte{1, 2, 3})

	var buf bytes.Buffer
	require.NoError(t, cache.WriteTo(&buf))

	restored := NewCache()
	require.NoError(t, restored.ReadFrom(&buf))
	data, ok := restored.Get(Key{Offset: 7, Length: 3})
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3}, data)
}

func TestBlockSourceAmortizesReads(t *testing.T) {
	data := testData()
	source := &countingSource{BytesSource: NewBytesSource(data)}
	blocked := NewBlockSource(source, 1024)

	buf := make([]byte, 16)
	for off := int64(0); off < 1024; off += 64 {
		_, err := blocked.ReadAt(buf, off)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, source.reads, "reads inside one block cost one fetch")

	// Spanning a block boundary stitches two blocks together.
	span := make([]byte, 128)
	n, err := blocked.ReadAt(span, 1000)
	require.NoError(t, err)
	assert.Equal(t, 128, n)
	assert.Equal(t, data[1000:1128], span)
}

func TestBlockSourceTailRead(t *testing.T) {
	data := testData()
	blocked := NewBlockSource(NewBytesSource(data), 1000)

	buf := make([]byte, 200)
	n, err := blocked.ReadAt(buf, int64(len(data))-100)
	require.True(t, err == nil || errors.Is(err, io.EOF))
	assert.Equal(t, 100, n)
	assert.Equal(t, data[len(data)-100:], buf[:n])
}

func TestBytesSourceHash(t *testing.T) {
	s := NewBytesSource([]byte("hello"))
	assert.Equal(t, "aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d", s.Hash())
}
