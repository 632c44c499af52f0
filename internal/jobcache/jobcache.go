// Package jobcache lets a batch run of gzflate skip files it already
// decompressed and verified in a previous run. It fingerprints a bounded
// prefix of each input file with xxhash, keeps recent lookups in an
// in-process tinylfu tier, and falls back to a durable Pebble table on
// disk — the same two-tier shape the teacher used for its own block
// cache, repurposed here for whole-file completion tracking rather than
// random access into a stream (a non-goal of the decoder itself).
package jobcache

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/pebble/v2"
	"github.com/dgryski/go-tinylfu"
)

// prefixSize bounds how much of a candidate input file we hash. Gzip
// members can be large; re-reading the whole thing just to decide whether
// to skip it would defeat the point of caching.
const prefixSize = 64 * 1024

// Entry is what the cache remembers about a file it has already
// decompressed and verified: the decompressed size and CRC-32, so a
// second run can tell a fingerprint collision from a genuine repeat.
type Entry struct {
	Size  int64
	CRC32 uint32
}

// Cache is the two-tier completed-job table. It is not safe for concurrent
// use by multiple goroutines: the in-process tinylfu tier is not
// synchronized.
type Cache struct {
	db  *pebble.DB
	mem *tinylfu.T[string, Entry]
}

// Open opens (creating if necessary) a durable job cache rooted at dir.
func Open(dir string) (*Cache, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("jobcache: opening %s: %w", dir, err)
	}
	return &Cache{
		db:  db,
		mem: tinylfu.New[string, Entry](4096, 4096*10, xxhash.Sum64String),
	}, nil
}

func (c *Cache) Close() error {
	return c.db.Close()
}

// Fingerprint hashes the first prefixSize bytes of f (or all of it, if
// smaller) mixed with its total size, cheap enough to compute for every
// candidate file in a glob match before deciding whether to decompress it.
func Fingerprint(f *os.File) (uint64, error) {
	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("jobcache: stat: %w", err)
	}

	n := int64(prefixSize)
	if info.Size() < n {
		n = info.Size()
	}
	buf := make([]byte, n)
	read, err := f.ReadAt(buf, 0)
	if err != nil && err != io.EOF {
		return 0, fmt.Errorf("jobcache: reading prefix: %w", err)
	}

	h := xxhash.Sum64(buf[:read])
	return h ^ uint64(info.Size()), nil
}

// Lookup reports whether fp was previously Record-ed, checking the
// in-process tier before the durable table.
func (c *Cache) Lookup(fp uint64) (Entry, bool, error) {
	k := fpKey(fp)
	if v, ok := c.mem.Get(string(k)); ok {
		return v, true, nil
	}

	val, closer, err := c.db.Get(k)
	if errors.Is(err, pebble.ErrNotFound) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("jobcache: lookup: %w", err)
	}
	defer closer.Close()

	e, ok := decodeEntry(val)
	if !ok {
		return Entry{}, false, nil
	}
	c.mem.Add(string(k), e)
	return e, true, nil
}

// Record remembers that the file fingerprinted as fp decompressed to e,
// in both tiers.
func (c *Cache) Record(fp uint64, e Entry) error {
	k := fpKey(fp)
	if err := c.db.Set(k, encodeEntry(e), pebble.Sync); err != nil {
		return fmt.Errorf("jobcache: record: %w", err)
	}
	c.mem.Add(string(k), e)
	return nil
}

func fpKey(fp uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], fp)
	return b[:]
}

func encodeEntry(e Entry) []byte {
	var b [12]byte
	binary.LittleEndian.PutUint64(b[0:8], uint64(e.Size))
	binary.LittleEndian.PutUint32(b[8:12], e.CRC32)
	return b[:]
}

func decodeEntry(b []byte) (Entry, bool) {
	if len(b) != 12 {
		return Entry{}, false
	}
	return Entry{
		Size:  int64(binary.LittleEndian.Uint64(b[0:8])),
		CRC32: binary.LittleEndian.Uint32(b[8:12]),
	}, true
}
