package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"hash/crc32"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/therootcompany/xz"
	"golang.org/x/sys/unix"

	internalgzip "github.com/elliotnunn/gzflate/internal/gzip"
	"github.com/elliotnunn/gzflate/internal/jobcache"
)

func main() {
	keepGoing := flag.Bool("k", false, "keep going after a file fails to decompress")
	verify := flag.Bool("v", true, "verify the trailing checksum/size of each gzip member")
	outDir := flag.String("o", "", "write decompressed output into this directory instead of stdout")
	flag.Parse()

	patterns := flag.Args()
	if len(patterns) == 0 {
		fmt.Fprintln(os.Stderr, "usage: gzflate [-k] [-v] [-o dir] pattern...")
		os.Exit(2)
	}

	raiseFileDescriptorLimit()

	matches, err := expandPatterns(patterns)
	if err != nil {
		slog.Error("expanding patterns", "error", err)
		os.Exit(1)
	}
	if len(matches) == 0 {
		slog.Error("no files matched")
		os.Exit(1)
	}

	cacheDir, err := jobCacheDir()
	if err != nil {
		slog.Error("locating job cache directory", "error", err)
		os.Exit(1)
	}
	jc, err := jobcache.Open(cacheDir)
	if err != nil {
		slog.Error("opening job cache", "error", err)
		os.Exit(1)
	}
	defer jc.Close()

	cfg := configFromEnv()
	cfg.VerifyChecksum = *verify

	exitCode := 0
	single := len(matches) == 1
	for _, path := range matches {
		if err := decompressOne(path, jc, cfg, *outDir, single); err != nil {
			slog.Error("decompressing", "path", path, "error", err)
			exitCode = 1
			if !*keepGoing {
				os.Exit(exitCode)
			}
		}
	}
	os.Exit(exitCode)
}

func raiseFileDescriptorLimit() {
	var rlim unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rlim); err != nil {
		slog.Warn("reading file descriptor limit", "error", err)
		return
	}
	if rlim.Cur >= rlim.Max {
		return
	}
	rlim.Cur = rlim.Max
	if err := unix.Setrlimit(unix.RLIMIT_NOFILE, &rlim); err != nil {
		slog.Warn("raising file descriptor limit", "error", err)
	}
}

// expandPatterns resolves each pattern against the current directory with
// doublestar.FilepathGlob, which (unlike filepath.Glob) understands "**". A
// pattern with no glob metacharacters is passed through as a literal path
// so a plain filename still works without matching anything in the tree.
func expandPatterns(patterns []string) ([]string, error) {
	var out []string
	for _, pattern := range patterns {
		if !hasGlobMeta(pattern) {
			out = append(out, pattern)
			continue
		}
		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", pattern, err)
		}
		out = append(out, matches...)
	}
	return out, nil
}

func hasGlobMeta(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[{\\")
}

func jobCacheDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	dir := filepath.Join(base, "gzflate")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

func decompressOne(path string, jc *jobcache.Cache, cfg Config, outDir string, single bool) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	fp, err := jobcache.Fingerprint(f)
	if err != nil {
		return fmt.Errorf("fingerprinting: %w", err)
	}
	if entry, ok, lookupErr := jc.Lookup(fp); lookupErr == nil && ok {
		slog.Info("skipping already-verified file", "path", path, "size", entry.Size)
		return nil
	}

	br := bufio.NewReader(f)
	kind, err := sniff(br)
	if err != nil {
		return fmt.Errorf("sniffing format: %w", err)
	}

	var src io.Reader
	var checksumVerified bool
	switch kind {
	case formatGzip:
		gr, err := internalgzip.NewReaderConfig(br, internalgzip.Config{
			VerifyChecksum: cfg.VerifyChecksum,
			Flate:          cfg.Flate,
		})
		if err != nil {
			return fmt.Errorf("opening gzip member: %w", err)
		}
		src = gr
		checksumVerified = cfg.VerifyChecksum
	case formatXZ:
		xr, err := xz.NewReader(br, 0)
		if err != nil {
			return fmt.Errorf("opening xz stream: %w", err)
		}
		src = xr
	default:
		return errors.New("unrecognised format")
	}

	w, closeOut, err := openOutput(path, outDir, single)
	if err != nil {
		return err
	}
	defer closeOut()

	crc := crc32.NewIEEE()
	n, err := io.Copy(io.MultiWriter(w, crc), src)
	if err != nil {
		return fmt.Errorf("decompressing: %w", err)
	}

	if checksumVerified {
		if err := jc.Record(fp, jobcache.Entry{Size: n, CRC32: crc.Sum32()}); err != nil {
			slog.Warn("recording job cache entry", "path", path, "error", err)
		}
		slog.Debug("verified trailer", "path", path, "bytes", n)
	}
	return nil
}

// openOutput decides where decompressed bytes go: a same-named file
// (stripped of its compression extension) inside outDir, or stdout when
// exactly one file is being processed and no output directory was given.
func openOutput(path, outDir string, single bool) (io.Writer, func(), error) {
	if outDir == "" {
		if single {
			return os.Stdout, func() {}, nil
		}
		return nil, nil, fmt.Errorf("-o is required when matching more than one file")
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, nil, err
	}
	f, err := os.Create(filepath.Join(outDir, name))
	if err != nil {
		return nil, nil, err
	}
	return f, func() { f.Close() }, nil
}
