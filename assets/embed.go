package assets

import (
	"bufio"
	"embed"
	"io"
	"strings"
)

//go:embed images.txt
var FS embed.FS

// ReadLines returns the non-blank, non-comment lines of r, trimmed.
func ReadLines(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		s := strings.TrimSpace(sc.Text())
		if s == "" || strings.HasPrefix(s, "#") {
			continue
		}
		out = append(out, s)
	}
	return out, sc.Err()
}

// ImageList returns the embedded default image pool.
func ImageList() ([]string, error) {
	f, err := FS.Open("images.txt")
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadLines(f)
}
