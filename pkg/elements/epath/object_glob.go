package epath

import (
	"context"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Glob implements Filesystem.
//
// Patterns with "**" list every key below the pattern's static prefix in
// one call and derive folders from the parents of nested keys. Other
// patterns walk their segments breadth-first with one delimited listing
// per folder, so shallow patterns never list the full depth. Both results
// are filtered against the whole pattern, de-duplicated and sorted.
func (s *ObjectStore) Glob(ctx context.Context, p Path, pattern string) ([]Path, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, pathErr("glob", p, doublestar.ErrBadPattern)
	}
	b, key, err := s.locate(ctx, p)
	if err != nil || b == nil {
		return nil, err
	}
	base := ""
	if key != "" {
		base = key + "/"
	}

	var candidates []string
	if strings.Contains(pattern, "**") {
		candidates, err = globDeep(ctx, b, base, pattern)
	} else {
		candidates, err = globShallow(ctx, b, base, pattern)
	}
	if err != nil {
		return nil, pathErr("glob", p, err)
	}

	matched := candidates[:0]
	for _, rel := range candidates {
		if rel != "" && doublestar.MatchUnvalidated(pattern, rel) {
			matched = append(matched, rel)
		}
	}
	slices.Sort(matched)
	matched = slices.Compact(matched)

	out := make([]Path, len(matched))
	for i, rel := range matched {
		out[i] = p.Join(rel)
	}
	return out, nil
}

// globDeep returns every key below the static prefix of pattern plus all
// folders implied by them, relative to base.
func globDeep(ctx context.Context, b Bucket, base, pattern string) ([]string, error) {
	prefix := base
	if static, _ := doublestar.SplitPattern(pattern); static != "." {
		prefix += static + "/"
	}
	listing, err := b.List(ctx, Query{Prefix: prefix})
	if err != nil {
		return nil, err
	}

	var out []string
	for _, obj := range listing.Objects {
		rel := strings.TrimSuffix(strings.TrimPrefix(obj.Key, base), "/")
		if rel == "" {
			continue
		}
		out = append(out, rel)
		for i := strings.LastIndex(rel, "/"); i > 0; i = strings.LastIndex(rel[:i], "/") {
			out = append(out, rel[:i])
		}
	}
	return out, nil
}

// globShallow resolves pattern one segment at a time. Literal segments are
// descended into without listing.
func globShallow(ctx context.Context, b Bucket, base, pattern string) ([]string, error) {
	segments := strings.Split(pattern, "/")
	dirs := []string{""}

	for i, seg := range segments {
		last := i == len(segments)-1
		var next []string

		for _, dir := range dirs {
			if !last && !hasMeta(seg) {
				next = append(next, dir+seg+"/")
				continue
			}
			listing, err := b.List(ctx, Query{Prefix: base + dir, Delimiter: "/"})
			if err != nil {
				return nil, err
			}
			for _, prefix := range listing.Prefixes {
				name := strings.TrimSuffix(strings.TrimPrefix(prefix, base+dir), "/")
				if name == "" || !doublestar.MatchUnvalidated(seg, name) {
					continue
				}
				if last {
					next = append(next, dir+name)
				} else {
					next = append(next, dir+name+"/")
				}
			}
			if !last {
				continue
			}
			for _, obj := range listing.Objects {
				name := strings.TrimPrefix(obj.Key, base+dir)
				if name == "" || strings.HasSuffix(name, "/") {
					continue
				}
				if doublestar.MatchUnvalidated(seg, name) {
					next = append(next, dir+name)
				}
			}
		}

		if len(next) == 0 {
			return nil, nil
		}
		dirs = next
	}
	return dirs, nil
}

func hasMeta(seg string) bool {
	return strings.ContainsAny(seg, `*?[{\`)
}
