package export

import (
	"archive/zip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// SourceDir is one ledger directory to include in the archive. Name becomes
// the top-level folder inside the zip.
type SourceDir struct {
	Name string
	Path string
}

// buildArchive writes a zip of every CSV ledger in the source directories,
// plus an index.json listing the contents and a hashes.txt manifest of
// per-file SHA-256 sums. Returns the number of ledger files archived.
func buildArchive(ctx context.Context, dest string, sources []SourceDir) (int, error) {
	f, err := os.Create(dest)
	if err != nil {
		return 0, fmt.Errorf("create archive: %w", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	var manifest strings.Builder
	index := struct {
		CreatedAt time.Time           `json:"createdAt"`
		Ledgers   map[string][]string `json:"ledgers"`
	}{CreatedAt: time.Now().UTC(), Ledgers: map[string][]string{}}

	count := 0
	for _, src := range sources {
		entries, err := os.ReadDir(src.Path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return 0, fmt.Errorf("read ledger dir: %w", err)
		}
		for _, e := range entries {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
			name := e.Name()
			if e.IsDir() || !strings.HasSuffix(name, ".csv") {
				continue
			}
			body, err := os.ReadFile(filepath.Join(src.Path, name))
			if err != nil {
				return 0, fmt.Errorf("read ledger %s: %w", name, err)
			}
			entryName := src.Name + "/" + name
			if err := addEntry(zw, entryName, body); err != nil {
				return 0, err
			}
			fmt.Fprintf(&manifest, "%s  %s\n", hashBytes(body), entryName)
			index.Ledgers[src.Name] = append(index.Ledgers[src.Name], name)
			count++
		}
	}

	indexBody, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("encode index: %w", err)
	}
	if err := addEntry(zw, "index.json", indexBody); err != nil {
		return 0, err
	}
	if err := addEntry(zw, "hashes.txt", []byte(manifest.String())); err != nil {
		return 0, err
	}

	if err := zw.Close(); err != nil {
		return 0, fmt.Errorf("finish archive: %w", err)
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("close archive: %w", err)
	}
	return count, nil
}

func addEntry(zw *zip.Writer, name string, body []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("create archive entry %s: %w", name, err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("write archive entry %s: %w", name, err)
	}
	return nil
}

func hashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
