package pagecache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/openvault/docpipeline/internal/storage"
)

// Source is random-access byte access to the underlying document.
type Source interface {
	io.ReaderAt
	Size() int64
}

// Mode selects how a Reader interacts with its cache.
type Mode int

const (
	// Passthrough serves every read from the source.
	Passthrough Mode = iota
	// Record serves reads from the source and memoizes each one.
	Record
	// Replay serves reads from the cache when the exact (offset, length)
	// was recorded, falling through to the source on a miss. Misses are
	// not recorded.
	Replay
)

// Reader is a seekable, random-access view of a document that can record
// or replay its read pattern. Not safe for concurrent use: the PDF engine
// drives it from a single goroutine.
type Reader struct {
	source Source
	cache  *Cache
	mode   Mode
	pos    int64
}

// NewReader wraps a source. A nil cache forces Passthrough.
func NewReader(source Source, cache *Cache, mode Mode) *Reader {
	if cache == nil {
		mode = Passthrough
	}
	return &Reader{source: source, cache: cache, mode: mode}
}

// Size reports the document length in bytes.
func (r *Reader) Size() int64 {
	return r.source.Size()
}

// ReadAt implements io.ReaderAt with record/replay memoization.
func (r *Reader) ReadAt(p []byte, off int64) (int, error) {
	key := Key{Offset: off, Length: int32(len(p))}
	if r.mode == Replay {
		if data, ok := r.cache.Get(key); ok {
			n := copy(p, data)
			if n < len(p) {
				return n, io.EOF
			}
			return n, nil
		}
	}
	n, err := r.source.ReadAt(p, off)
	if r.mode == Record && n > 0 && (err == nil || err == io.EOF) {
		data := make([]byte, n)
		copy(data, p[:n])
		r.cache.Put(key, data)
	}
	return n, err
}

// Read implements io.Reader at the current seek position.
func (r *Reader) Read(p []byte) (int, error) {
	if r.pos >= r.source.Size() {
		return 0, io.EOF
	}
	n, err := r.ReadAt(p, r.pos)
	r.pos += int64(n)
	return n, err
}

// Seek implements io.Seeker.
func (r *Reader) Seek(offset int64, whence int) (int64, error) {
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = r.pos + offset
	case io.SeekEnd:
		pos = r.source.Size() + offset
	default:
		return 0, fmt.Errorf("invalid seek whence %d", whence)
	}
	if pos < 0 {
		return 0, errors.New("negative seek position")
	}
	r.pos = pos
	return pos, nil
}

// BytesSource serves reads from an in-memory copy of the document. The
// record pass reads the whole file once and indexes against this.
type BytesSource struct {
	data []byte
	hash string
}

// NewBytesSource wraps a full in-memory copy, capturing its SHA-1.
func NewBytesSource(data []byte) *BytesSource {
	sum := sha1.Sum(data)
	return &BytesSource{data: data, hash: hex.EncodeToString(sum[:])}
}

func (s *BytesSource) Size() int64 { return int64(len(s.data)) }

// Hash returns the hex SHA-1 of the full document.
func (s *BytesSource) Hash() string { return s.hash }

func (s *BytesSource) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(s.data)) {
		return 0, io.EOF
	}
	n := copy(p, s.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// StoreSource serves reads with ranged requests against object storage.
type StoreSource struct {
	ctx   context.Context
	store storage.ObjectStore
	path  string
	size  int64
}

// NewStoreSource stats the object once so Size is cheap afterwards.
func NewStoreSource(ctx context.Context, store storage.ObjectStore, path string) (*StoreSource, error) {
	size, err := store.Size(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	return &StoreSource{ctx: ctx, store: store, path: path, size: size}, nil
}

func (s *StoreSource) Size() int64 { return s.size }

func (s *StoreSource) ReadAt(p []byte, off int64) (int, error) {
	if off >= s.size {
		return 0, io.EOF
	}
	length := int64(len(p))
	if off+length > s.size {
		length = s.size - off
	}
	data, err := s.store.ReadRange(s.ctx, s.path, off, length)
	if err != nil {
		return 0, fmt.Errorf("failed ranged read of %s: %w", s.path, err)
	}
	n := copy(p, data)
	if int64(n) < int64(len(p)) {
		return n, io.EOF
	}
	return n, nil
}

// DefaultBlockSize is how much surrounding data a BlockSource fetches per
// cache miss. Large blocks amortize per-request latency against remote
// storage.
const DefaultBlockSize = 8 * 1024 * 1024

// BlockSource caches fixed-size blocks of another source so that many
// small nearby reads cost one remote fetch. Safe for concurrent use.
type BlockSource struct {
	source    Source
	blockSize int64

	mu     sync.Mutex
	blocks map[int64][]byte
}

// NewBlockSource wraps a source with block caching. blockSize <= 0 uses
// DefaultBlockSize.
func NewBlockSource(source Source, blockSize int64) *BlockSource {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	return &BlockSource{source: source, blockSize: blockSize, blocks: map[int64][]byte{}}
}

func (s *BlockSource) Size() int64 { return s.source.Size() }

func (s *BlockSource) ReadAt(p []byte, off int64) (int, error) {
	size := s.source.Size()
	if off >= size {
		return 0, io.EOF
	}
	total := 0
	for total < len(p) && off < size {
		block, err := s.block(off / s.blockSize)
		if err != nil {
			return total, err
		}
		start := off % s.blockSize
		if start >= int64(len(block)) {
			break
		}
		n := copy(p[total:], block[start:])
		total += n
		off += int64(n)
	}
	if total < len(p) {
		return total, io.EOF
	}
	return total, nil
}

func (s *BlockSource) block(index int64) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if block, ok := s.blocks[index]; ok {
		return block, nil
	}
	off := index * s.blockSize
	length := s.blockSize
	if off+length > s.source.Size() {
		length = s.source.Size() - off
	}
	block := make([]byte, length)
	n, err := s.source.ReadAt(block, off)
	if err != nil && err != io.EOF {
		return nil, err
	}
	block = block[:n]
	s.blocks[index] = block
	return block, nil
}
