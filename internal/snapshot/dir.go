package snapshot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/systemshift/supplygraph/internal/errs"
)

// DirSource reads snapshots from <dir>/<n>.json, ordered by n.
type DirSource struct {
	dir   string
	files []string
}

// OpenDir lists the snapshot files in dir.
func OpenDir(dir string) (*DirSource, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}
	files, err := sortNumeric(matches)
	if err != nil {
		return nil, err
	}
	return &DirSource{dir: dir, files: files}, nil
}

func (d *DirSource) Len() int { return len(d.files) }

func (d *DirSource) Fetch(ctx context.Context, t int) (*Snapshot, error) {
	if err := CheckIndex(t, len(d.files)); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.Unavailable(t, err)
	}

	f, err := os.Open(d.files[t])
	if err != nil {
		return nil, errs.Unavailable(t, err)
	}
	defer f.Close()

	s, err := Decode(f)
	if err != nil {
		return nil, errs.Unavailable(t, fmt.Errorf("%s: %w", d.files[t], err))
	}
	return s, nil
}

// Path returns the file backing timestamp t.
func (d *DirSource) Path(t int) string {
	if t < 0 || t >= len(d.files) {
		return ""
	}
	return d.files[t]
}
