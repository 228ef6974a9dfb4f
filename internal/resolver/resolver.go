// Package resolver selects the newest matching artifact out of a raw
// directory listing. It is transport-agnostic: callers hand it the flattened
// filename sequence, no matter whether it came from an HTML index page or a
// JSON listing.
package resolver

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/obsimg/obsimg/internal/logger"
	"github.com/obsimg/obsimg/internal/rpm"
)

// Candidate is a listing entry that matched the artifact pattern. Version and
// Release hold the two capture groups of the pattern (kiwi-style version and
// build number).
type Candidate struct {
	BaseName  string
	Extension string
	Version   string
	Release   string
}

// FileName reassembles the listing entry the candidate was built from.
func (c Candidate) FileName() string {
	return c.BaseName + c.Extension
}

// NotFoundError reports that no listing entry matched the pattern, not even
// under the relaxed name-only pass.
type NotFoundError struct {
	Name    string
	Pattern string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no artifact matching %q (pattern %s) in listing", e.Name, e.Pattern)
}

func (e *NotFoundError) Kind() string { return "NotFoundError" }

// AmbiguousArtifactError reports that the name-only fallback matched more
// than one distinct base name. This is deliberately not auto-resolved; the
// caller has to narrow the pattern.
type AmbiguousArtifactError struct {
	Name       string
	Candidates []Candidate
}

func (e *AmbiguousArtifactError) Error() string {
	names := make([]string, 0, len(e.Candidates))
	for _, c := range e.Candidates {
		names = append(names, c.FileName())
	}
	return fmt.Sprintf("multiple artifacts match name %q: %s", e.Name, strings.Join(names, ", "))
}

func (e *AmbiguousArtifactError) Kind() string { return "AmbiguousArtifactError" }

// Resolve picks the newest artifact out of listing. A filename is a candidate
// when it carries one of the accepted extensions and its remainder matches
// pattern, which must expose two capture groups (version, build). Among
// candidates the highest version-release pair under RPM ordering wins, ties
// going to the earlier extension in exts.
//
// When the pattern matches nothing, a relaxed pass accepts filenames that
// simply start with name: a single distinct base name is taken as is, more
// than one is an AmbiguousArtifactError.
func Resolve(listing []string, name string, pattern *regexp.Regexp, exts []string) (Candidate, error) {
	candidates := matchPattern(listing, pattern, exts)
	if len(candidates) > 0 {
		return pickHighest(candidates, exts), nil
	}

	logger.Debug("no listing entry matches %s, retrying with name-only search", pattern)

	fallback := matchName(listing, name, exts)
	switch distinct := distinctBases(fallback); {
	case len(fallback) == 0:
		return Candidate{}, &NotFoundError{Name: name, Pattern: pattern.String()}
	case distinct > 1:
		return Candidate{}, &AmbiguousArtifactError{Name: name, Candidates: fallback}
	default:
		return fallback[0], nil
	}
}

func matchPattern(listing []string, pattern *regexp.Regexp, exts []string) []Candidate {
	var candidates []Candidate
	for _, entry := range listing {
		for _, ext := range exts {
			if !strings.HasSuffix(entry, ext) {
				continue
			}
			base := strings.TrimSuffix(entry, ext)
			groups := pattern.FindStringSubmatch(base)
			if groups == nil || len(groups) < 3 {
				continue
			}
			// Extensions carried without a leading dot leave the separator
			// on the base, and the greedy build group swallows it.
			candidates = append(candidates, Candidate{
				BaseName:  base,
				Extension: ext,
				Version:   groups[1],
				Release:   strings.TrimSuffix(groups[2], "."),
			})
			break
		}
	}
	return candidates
}

func matchName(listing []string, name string, exts []string) []Candidate {
	var candidates []Candidate
	for _, entry := range listing {
		if !strings.HasPrefix(entry, name) {
			continue
		}
		for _, ext := range exts {
			if strings.HasSuffix(entry, ext) {
				candidates = append(candidates, Candidate{
					BaseName:  strings.TrimSuffix(entry, ext),
					Extension: ext,
				})
				break
			}
		}
	}
	return candidates
}

func pickHighest(candidates []Candidate, exts []string) Candidate {
	best := candidates[0]
	for _, c := range candidates[1:] {
		switch rpm.CompareFields(c.comparable(), best.comparable()) {
		case rpm.Newer:
			best = c
		case rpm.Equal:
			if extPriority(exts, c.Extension) < extPriority(exts, best.Extension) {
				best = c
			}
		}
	}
	return best
}

// comparable joins the two capture groups for ordering, trimming the trailing
// separator left behind when the release group is empty.
func (c Candidate) comparable() string {
	return strings.TrimSuffix(c.Version+"."+c.Release, ".")
}

func extPriority(exts []string, ext string) int {
	for i, e := range exts {
		if e == ext {
			return i
		}
	}
	return len(exts)
}

func distinctBases(candidates []Candidate) int {
	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		seen[c.BaseName] = struct{}{}
	}
	return len(seen)
}
