package snapshot

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/systemshift/supplygraph/internal/errs"
)

// Source produces the raw snapshot for a timestamp index in [0, Len()).
//
// Fetch must honour ctx and must report failures as errors; an unreachable
// or unreadable snapshot is never returned as an empty one.
type Source interface {
	Len() int
	Fetch(ctx context.Context, t int) (*Snapshot, error)
}

// CheckIndex returns ErrInvalidArgument when t is outside [0, n).
func CheckIndex(t, n int) error {
	if t < 0 || t >= n {
		return errs.InvalidArgument("timestamp %d out of range [0, %d)", t, n)
	}
	return nil
}

// Memory serves snapshots held in memory. Used by tests and by callers that
// already decoded their data.
type Memory struct {
	snaps []*Snapshot
}

// NewMemory returns a Memory source over snaps, in order.
func NewMemory(snaps ...*Snapshot) *Memory {
	return &Memory{snaps: snaps}
}

func (m *Memory) Len() int { return len(m.snaps) }

func (m *Memory) Fetch(ctx context.Context, t int) (*Snapshot, error) {
	if err := CheckIndex(t, len(m.snaps)); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.Unavailable(t, err)
	}
	return m.snaps[t], nil
}

// sortNumeric orders snapshot names ("12.json", "3") by their numeric stem.
// Names without a numeric stem are rejected so that index order is never a
// guess.
func sortNumeric(names []string) ([]string, error) {
	type keyed struct {
		name string
		n    int64
	}
	items := make([]keyed, 0, len(names))
	for _, name := range names {
		stem := strings.TrimSuffix(path.Base(name), ".json")
		n, err := strconv.ParseInt(stem, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("snapshot name %q is not numeric", name)
		}
		items = append(items, keyed{name: name, n: n})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].n < items[j].n })

	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.name
	}
	return out, nil
}
