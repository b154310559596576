// internal/images/images.go
//
// Image pool provider for the board generator.
//
// Load behavior:
//   1. If a path is given (IMAGES_FILE), read one reference per line from it.
//   2. Otherwise use the embedded default list from assets/images.txt.
//
// References are opaque to the server: they are trimmed, de-duplicated in
// first-seen order and passed to clients unchanged. Whether an image actually
// loads is the renderer's concern.

package images

import (
	"errors"
	"fmt"
	"os"

	"github.com/robalobadob/memory-match/assets"
)

// ErrEmptyPool is returned when no usable references were found.
var ErrEmptyPool = errors.New("images: pool is empty")

// Load returns the pool from path, or the embedded default if path is "".
func Load(path string) ([]string, error) {
	var (
		refs []string
		err  error
	)
	if path == "" {
		refs, err = assets.ImageList()
	} else {
		refs, err = readFile(path)
	}
	if err != nil {
		return nil, err
	}

	refs = dedupe(refs)
	if len(refs) == 0 {
		return nil, ErrEmptyPool
	}
	return refs, nil
}

func readFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image list: %w", err)
	}
	defer f.Close()
	return assets.ReadLines(f)
}

// dedupe keeps the first occurrence of each reference.
func dedupe(refs []string) []string {
	seen := make(map[string]struct{}, len(refs))
	out := refs[:0]
	for _, r := range refs {
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}
