// Package ignore decides which relative paths of a tree are excluded by the
// rules of an ignore file.
//
// The file holds one shell-glob pattern per line. Blank lines are skipped and a
// trailing "/" marks a rule as directory-only. There is no comment or negation
// syntax.
package ignore

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"

	"github.com/danwakefield/fnmatch"

	"github.com/starford/dirtools/internal/storage"
)

// DefaultFile is the name of the ignore file looked up at the root.
const DefaultFile = ".exclude"

// Rule is one parsed ignore line.
type Rule struct {
	Pattern string
	DirOnly bool
}

// String renders the rule the way it appears in the ignore file.
func (r Rule) String() string {
	if r.DirOnly {
		return r.Pattern + "/"
	}
	return r.Pattern
}

// strategy reports whether rule matches rel.
type strategy func(rule Rule, rel string) bool

// fullPath globs the rule against the whole relative path.
func fullPath(rule Rule, rel string) bool {
	return glob(rule.Pattern, rel)
}

// baseName globs the rule against the final path component. Directory-only
// rules name one location in the tree and never match by basename.
func baseName(rule Rule, rel string) bool {
	if rule.DirOnly {
		return false
	}
	return glob(rule.Pattern, path.Base(rel))
}

// strategies are tried in order; the first hit excludes the path.
var strategies = []strategy{fullPath, baseName}

// glob applies fnmatch without FNM_PATHNAME, so "*" also crosses "/".
func glob(pattern, name string) bool {
	return fnmatch.Match(pattern, name, 0)
}

// Match reports whether name matches the shell glob pattern.
func Match(pattern, name string) bool {
	return glob(pattern, name)
}

// Matcher holds an ordered rule set. It is immutable after construction.
type Matcher struct {
	rules []Rule
}

// New creates a Matcher from rules.
func New(rules ...Rule) *Matcher {
	return &Matcher{rules: append([]Rule(nil), rules...)}
}

// Parse reads rules from r in file order.
func Parse(r io.Reader) ([]Rule, error) {
	var rules []Rule
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		rule := Rule{Pattern: line}
		if strings.HasSuffix(line, "/") {
			rule.DirOnly = true
			rule.Pattern = strings.TrimRight(line, "/")
			if rule.Pattern == "" {
				continue
			}
		}
		rules = append(rules, rule)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("ignore: parse: %w", err)
	}
	return rules, nil
}

// ParseString is Parse over an in-memory rule file.
func ParseString(s string) ([]Rule, error) {
	return Parse(strings.NewReader(s))
}

// Load reads the ignore file name from the root of store. A missing file
// yields an empty Matcher.
func Load(store storage.Provider, name string) (*Matcher, error) {
	if name == "" {
		name = DefaultFile
	}
	rc, err := store.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return New(), nil
		}
		return nil, fmt.Errorf("ignore: open %s: %w", name, err)
	}
	defer rc.Close()

	rules, err := Parse(rc)
	if err != nil {
		return nil, err
	}
	return New(rules...), nil
}

// Rules returns a copy of the rule set.
func (m *Matcher) Rules() []Rule {
	return append([]Rule(nil), m.rules...)
}

// Len returns the number of rules.
func (m *Matcher) Len() int {
	return len(m.rules)
}

// IsExcluded reports whether rel is excluded. The answer is per path: a
// directory-only rule excludes the directory it names, and callers prune
// everything below it.
func (m *Matcher) IsExcluded(rel string) bool {
	rel = strings.Trim(rel, "/")
	if rel == "" {
		return false
	}
	for _, rule := range m.rules {
		for _, match := range strategies {
			if match(rule, rel) {
				return true
			}
		}
	}
	return false
}
