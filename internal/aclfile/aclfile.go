// Package aclfile loads the -T target-ACL file (spec §6, §9 Open
// Question 2; SPEC_FULL §2.12/§4.14): the set of principals NEWREQ is
// permitted to open a rotation for.
package aclfile

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Set is a loaded target-ACL file: a set of exact-match principals
// plus a set of "host/*"-style instance wildcards (a pattern like
// "host/*@REALM" permits any host principal in that realm).
type Set struct {
	exact      map[string]struct{}
	wildcards  []wildcard
}

type wildcard struct {
	prefix string // e.g. "host/"
	suffix string // e.g. "@REALM", may be empty
}

// Load reads path, one permitted target principal pattern per line.
// Blank lines and lines starting with "#" are ignored.
func Load(path string) (*Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("aclfile: open %s: %w", path, err)
	}
	defer f.Close()

	s := &Set{exact: make(map[string]struct{})}

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if star := strings.Index(line, "*"); star >= 0 {
			s.wildcards = append(s.wildcards, wildcard{
				prefix: line[:star],
				suffix: line[star+1:],
			})
			continue
		}

		s.exact[line] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("aclfile: read %s: %w", path, err)
	}

	return s, nil
}

// Permits reports whether principal is an authorized NEWREQ target. A
// nil Set permits everything (no -T flag configured, the original
// spec's "not consulted" default).
func (s *Set) Permits(principal string) bool {
	if s == nil {
		return true
	}
	if _, ok := s.exact[principal]; ok {
		return true
	}
	for _, w := range s.wildcards {
		if strings.HasPrefix(principal, w.prefix) && strings.HasSuffix(principal, w.suffix) {
			return true
		}
	}
	return false
}
