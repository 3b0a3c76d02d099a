// Package specfile resolves task specification links into bounded text.
// Links come from untrusted checklist documents, so resolution refuses paths
// that escape the repository root and follows symlinks only within it.
package specfile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	securejoin "github.com/cyphar/filepath-securejoin"
)

// MaxSpecBytes caps how much of a specification file is loaded. Larger files
// are truncated, never rejected.
const MaxSpecBytes = 100 * 1024

// ErrOutsideRoot indicates a specification link that resolves outside the
// repository root.
var ErrOutsideRoot = errors.New("specification path escapes the repository root")

// Content is the loaded text of one specification file.
type Content struct {
	// Text is the file content, possibly truncated. Empty when the link did
	// not resolve to a readable file.
	Text string

	// Path is the resolved absolute path, empty when no link was given.
	Path string

	// Truncated reports that Text was cut at MaxSpecBytes.
	Truncated bool
}

// Empty reports whether any specification text was loaded.
func (c Content) Empty() bool { return c.Text == "" }

// Loader resolves links against one repository root.
type Loader struct {
	root string
}

// NewLoader creates a Loader anchored at the repository root.
func NewLoader(root string) *Loader {
	return &Loader{root: root}
}

// Load reads the specification file behind link. An empty link yields an
// empty Content. A link that resolves to a missing or unreadable file yields
// empty text, not an error; callers proceed without a specification. The only
// error is ErrOutsideRoot for links that lexically escape the root.
func (l *Loader) Load(link string) (Content, error) {
	link = strings.TrimSpace(link)
	if link == "" {
		return Content{}, nil
	}

	path, err := l.resolve(link)
	if err != nil {
		return Content{}, err
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return Content{Path: path}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return Content{Path: path}, nil
	}
	defer f.Close()

	// Read one byte past the cap to tell "exactly at cap" from "over it".
	data, err := io.ReadAll(io.LimitReader(f, MaxSpecBytes+1))
	if err != nil {
		return Content{Path: path}, nil
	}

	c := Content{Path: path, Text: string(data)}
	if len(data) > MaxSpecBytes {
		c.Text = trimPartialRune(string(data[:MaxSpecBytes]))
		c.Truncated = true
	}
	return c, nil
}

// resolve maps link to an absolute path inside the repository root. Task
// authors write absolute spec paths as if the repository root were the
// filesystem root, so a leading separator is stripped rather than honored.
// Symlinks are resolved scoped to the root, so a link inside the repository
// cannot lead outside it.
func (l *Loader) resolve(link string) (string, error) {
	p := link
	if filepath.IsAbs(p) {
		p = strings.TrimPrefix(p, string(filepath.Separator))
	}
	if cleaned := filepath.Clean(p); cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%q: %w", link, ErrOutsideRoot)
	}
	resolved, err := securejoin.SecureJoin(l.root, p)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", link, err)
	}
	return resolved, nil
}

// trimPartialRune drops a trailing UTF-8 fragment left behind by a byte-level
// cut. At most utf8.UTFMax-1 bytes are removed; interior bytes are never
// touched.
func trimPartialRune(s string) string {
	for i := 0; i < utf8.UTFMax-1 && len(s) > 0; i++ {
		r, size := utf8.DecodeLastRuneInString(s)
		if r != utf8.RuneError || size != 1 {
			break
		}
		s = s[:len(s)-1]
	}
	return s
}
