package workspace

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/nightshift-labs/nightshift/internal/util"
)

// NamingStrategy generates branch names of the form
// <prefix>/<slug>-<yyyymmdd>-<hhmmss>-<4 hex chars>. The timestamp plus the
// random suffix make names unique even for identically titled tasks created
// in the same second, and every issued name is remembered so a token
// collision within one run re-rolls instead of repeating a name.
type NamingStrategy struct {
	prefix string
	now    func() time.Time
	token  func() string

	mu     sync.Mutex
	issued map[string]struct{}
}

// NewNamingStrategy creates a strategy using the given branch prefix.
func NewNamingStrategy(prefix string) *NamingStrategy {
	return &NamingStrategy{
		prefix: prefix,
		now:    time.Now,
		token:  randomToken,
		issued: make(map[string]struct{}),
	}
}

// Prefix returns the branch prefix, without a trailing slash.
func (s *NamingStrategy) Prefix() string { return s.prefix }

// BranchName derives a branch name from a task title, unique for the
// lifetime of the strategy.
func (s *NamingStrategy) BranchName(title string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	slug := util.Slugify(title)
	ts := s.now().Format("20060102-150405")
	for attempt := 0; ; attempt++ {
		token := s.token()
		if attempt > 0 {
			token = fmt.Sprintf("%s%d", token, attempt)
		}
		name := fmt.Sprintf("%s/%s-%s-%s", s.prefix, slug, ts, token)
		if _, dup := s.issued[name]; dup {
			continue
		}
		s.issued[name] = struct{}{}
		return name
	}
}

// PathSegment flattens a branch name into a single directory name.
func PathSegment(branch string) string {
	return strings.ReplaceAll(branch, "/", "-")
}

// randomToken returns a short random hex string. On entropy failure it falls
// back to a pid-derived token rather than failing branch creation.
func randomToken() string {
	b := make([]byte, 2)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%04x", os.Getpid()%0x10000)
	}
	return hex.EncodeToString(b)
}
