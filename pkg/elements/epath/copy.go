package epath

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// CrossCopy copies src to dst using only the Filesystem interface, so it
// works between any two backends. Backends call it when they cannot copy
// natively.
//
// Without recursive, src must be a file and its bytes replace dst. With
// recursive, an existing dst receives the copy under dst/<src name>;
// otherwise dst becomes the copy of src.
func CrossCopy(ctx context.Context, src, dst Path, recursive bool) error {
	if !recursive {
		isFile, err := src.IsFile(ctx)
		if err != nil {
			return err
		}
		if !isFile {
			return pathErr("copy", src, ErrNotFile)
		}
		return streamFile(ctx, src, dst)
	}

	exists, err := dst.Exists(ctx)
	if err != nil {
		return err
	}
	if exists {
		dst = dst.Join(src.Name())
	}
	if err := dst.Mkdir(ctx); err != nil {
		return err
	}

	// Glob results are sorted, so every directory precedes its children.
	children, err := src.Glob(ctx, "**")
	if err != nil {
		return err
	}
	for _, child := range children {
		rel, ok := Relative(src, child)
		if !ok {
			return pathErr("copy", child, fmt.Errorf("not under %s", src))
		}
		target := dst.Join(rel)

		isDir, err := child.IsDir(ctx)
		if err != nil {
			return err
		}
		if isDir {
			if err := target.Mkdir(ctx); err != nil {
				return err
			}
			continue
		}
		if err := streamFile(ctx, child, target); err != nil {
			return err
		}
	}
	return nil
}

// Relative returns child's path relative to base, reporting false when
// child is not a strict descendant of base.
func Relative(base, child Path) (string, bool) {
	prefix := base.String()
	switch {
	case prefix == ".":
		prefix = ""
	case !strings.HasSuffix(prefix, "/"):
		prefix += "/"
	}
	rel, ok := strings.CutPrefix(child.String(), prefix)
	if !ok || rel == "" {
		return "", false
	}
	return rel, true
}

// crossMove copies then removes the source.
func crossMove(ctx context.Context, src, dst Path, recursive bool) error {
	if err := CrossCopy(ctx, src, dst, recursive); err != nil {
		return err
	}
	return src.Remove(ctx, recursive)
}

func streamFile(ctx context.Context, src, dst Path) error {
	r, err := src.Open(ctx)
	if err != nil {
		return err
	}
	defer r.Close()

	w, err := dst.Create(ctx, Truncate)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return pathErr("copy", src, err)
	}
	if err := w.Close(); err != nil {
		return pathErr("copy", dst, err)
	}
	return nil
}
