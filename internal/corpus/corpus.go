// Package corpus finds, reads and writes fuzz inputs and string pools on
// disk. Files ending in .zst or .lz4 are transparently decompressed.
package corpus

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"kernelfuzz/internal/ir"
	"kernelfuzz/internal/strpool"
)

// MaxFileSize bounds a single decompressed corpus file.
const MaxFileSize = 64 << 20

var ErrTooLarge = errors.New("corpus file too large")

// Entry is one loaded input.
type Entry struct {
	Path   string
	Digest ir.Digest
	Data   []byte
}

// Discover lists the input files under root in lexical order. A plain file
// is returned as is. Dot files and directories are skipped.
func Discover(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{root}, nil
	}
	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// ReadFile reads path, decompressing by extension.
func ReadFile(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(raw) > MaxFileSize {
		return nil, fmt.Errorf("%s: %w", path, ErrTooLarge)
	}
	data, err := Decompress(raw, CompressionOf(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return data, nil
}

// Load reads one corpus entry and digests its decompressed contents.
func Load(path string) (Entry, error) {
	data, err := ReadFile(path)
	if err != nil {
		return Entry{}, err
	}
	return Entry{Path: path, Digest: ir.SumInput(data), Data: data}, nil
}

// WriteFile atomically writes data to path, compressing by extension.
func WriteFile(path string, data []byte) error {
	out, err := Compress(data, CompressionOf(path))
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		// после успешного Rename файла уже нет
		_ = os.Remove(f.Name())
	}()
	if _, err := f.Write(out); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), path)
}

// ReadPool loads a string pool file (optionally compressed).
func ReadPool(path string) (*strpool.Pool, error) {
	data, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	return strpool.Parse(data), nil
}

func WritePool(path string, pool *strpool.Pool) error {
	return WriteFile(path, pool.Bytes())
}

// WriteSeed stores one input under dir, named by its digest so identical
// seeds collapse into one file. It returns the written path.
func WriteSeed(dir string, data []byte, c Compression) (string, error) {
	d := ir.SumInput(data)
	path := filepath.Join(dir, d.String()+c.Ext())
	if err := WriteFile(path, data); err != nil {
		return "", err
	}
	return path, nil
}
