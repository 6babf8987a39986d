package sked

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDueQueueOrdering(t *testing.T) {
	t.Parallel()
	base := time.Unix(1_000_000, 0)
	q := newDueQueue()

	require.True(t, q.push(base.Add(2*time.Second), 1))
	require.True(t, q.push(base.Add(time.Second), 2))
	require.True(t, q.push(base.Add(2*time.Second), 3))
	require.True(t, q.push(base.Add(time.Second), 4))
	require.Equal(t, 4, q.Len())

	due, ok := q.peek()
	require.True(t, ok)
	require.True(t, due.Equal(base.Add(time.Second)))

	batch := q.popEqual(due)
	require.Equal(t, []ID{2, 4}, ids(batch))

	due, _ = q.peek()
	require.Equal(t, []ID{1, 3}, ids(q.popEqual(due)))

	_, ok = q.peek()
	require.False(t, ok)
	require.Empty(t, q.popEqual(due))
}

func TestDueQueueOnePendingPerID(t *testing.T) {
	t.Parallel()
	base := time.Unix(1_000_000, 0)
	q := newDueQueue()

	require.True(t, q.push(base, 7))
	require.False(t, q.push(base.Add(time.Hour), 7))
	require.Equal(t, 1, q.Len())

	next, ok := q.next(7)
	require.True(t, ok)
	require.True(t, next.Equal(base))

	q.popEqual(base)
	_, ok = q.next(7)
	require.False(t, ok)
	require.True(t, q.push(base.Add(time.Hour), 7))
}

func TestDueQueueEqualInstantsAcrossLocations(t *testing.T) {
	t.Parallel()
	base := time.Unix(1_000_000, 0).UTC()
	q := newDueQueue()
	q.push(base, 1)
	q.push(base.In(time.FixedZone("X", 3600)), 2)
	require.Equal(t, []ID{1, 2}, ids(q.popEqual(base)))
}

func TestDueQueueClear(t *testing.T) {
	t.Parallel()
	q := newDueQueue()
	q.push(time.Unix(1, 0), 1)
	q.push(time.Unix(2, 0), 2)
	q.clear()
	require.Zero(t, q.Len())
	_, ok := q.next(1)
	require.False(t, ok)
}

func ids(es []entry) []ID {
	out := make([]ID, 0, len(es))
	for _, e := range es {
		out = append(out, e.id)
	}
	return out
}
