package orchestration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plusserver/openstack-apimonitor/internal/exec"
	"github.com/plusserver/openstack-apimonitor/internal/pool"
	"github.com/plusserver/openstack-apimonitor/internal/stats"
)

func seededPool(kind string, ids ...string) *pool.Pool {
	p := pool.New(kind)
	for _, id := range ids {
		p.Push(pool.Handle{ID: id, CreatedAt: time.Now()})
	}
	return p
}

// deleteScript fails the listed ids a fixed number of times each.
type deleteScript struct {
	failures map[string]int
	order    []string
}

func (d *deleteScript) template(id string) exec.Action {
	return exec.NewFuncAction("delete "+id, func(context.Context) exec.Result {
		d.order = append(d.order, id)
		if d.failures[id] > 0 {
			d.failures[id]--
			return exec.Result{Code: 1, Output: "conflict"}
		}
		return exec.Result{}
	})
}

func newDeleter(rem *pool.Remainder) *Deleter {
	return &Deleter{Runner: quietRunner(), Remainder: rem}
}

func TestDeleteBatchDrainsLIFO(t *testing.T) {
	t.Parallel()
	rem := pool.NewRemainder()
	d := newDeleter(rem)
	p := seededPool("volume", "a1", "a2", "a3")
	series := stats.NewSeries("volume.delete")
	script := &deleteScript{}

	failed := d.DeleteBatch(context.Background(), series, p, nil, time.Minute, script.template)

	assert.Zero(t, failed)
	assert.Zero(t, p.Len())
	assert.Equal(t, []string{"a3", "a2", "a1"}, script.order)
	assert.Equal(t, 3, series.Len())
	assert.Zero(t, rem.Len())
}

func TestDeleteBatchRetriesOnceThenSucceeds(t *testing.T) {
	t.Parallel()
	rem := pool.NewRemainder()
	d := newDeleter(rem)
	p := seededPool("server", "s1")
	series := stats.NewSeries("server.delete")
	script := &deleteScript{failures: map[string]int{"s1": 1}}

	failed := d.DeleteBatch(context.Background(), series, p, nil, time.Minute, script.template)

	assert.Zero(t, failed)
	assert.Zero(t, p.Len())
	assert.Equal(t, []string{"s1", "s1"}, script.order)
	assert.Zero(t, rem.Len())
}

func TestDeleteBatchDoubleFailureGoesToRemainder(t *testing.T) {
	t.Parallel()
	rem := pool.NewRemainder()
	d := newDeleter(rem)
	p := seededPool("server", "s1", "s2")
	series := stats.NewSeries("server.delete")
	script := &deleteScript{failures: map[string]int{"s1": 2}}

	failed := d.DeleteBatch(context.Background(), series, p, nil, time.Minute, script.template)

	assert.Equal(t, 1, failed)
	// The pool always ends empty, the lost id lands on the remainder
	// exactly once.
	assert.Zero(t, p.Len())
	require.Equal(t, []string{"s1"}, rem.Of("server"))
	// s2 deleted first (LIFO), then two attempts on s1.
	assert.Equal(t, []string{"s2", "s1", "s1"}, script.order)
}

func TestDeleteBatchRecordsStartTimesByPosition(t *testing.T) {
	t.Parallel()
	rem := pool.NewRemainder()
	d := newDeleter(rem)
	p := seededPool("server", "s1", "s2", "s3")
	series := stats.NewSeries("server.delete")
	script := &deleteScript{}
	var times Times

	before := time.Now()
	d.DeleteBatch(context.Background(), series, p, &times, time.Minute, script.template)

	require.Equal(t, 3, times.Len())
	for i := 0; i < 3; i++ {
		assert.False(t, times.At(i).Before(before))
	}
}
