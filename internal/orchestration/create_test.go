package orchestration

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plusserver/openstack-apimonitor/internal/exec"
	"github.com/plusserver/openstack-apimonitor/internal/pool"
	"github.com/plusserver/openstack-apimonitor/internal/stats"
)

func quietRunner() *exec.Runner {
	return exec.NewRunner(nil, nil, nil, nil)
}

// scriptedCreate returns a Template producing ids a1, a2, ... and
// failing at the given zero-based indexes.
func scriptedCreate(failAt map[int]bool, seen *[]Item) Template {
	return func(item Item) exec.Action {
		if seen != nil {
			*seen = append(*seen, item)
		}
		return exec.NewFuncAction(fmt.Sprintf("create item %d", item.Index), func(context.Context) exec.Result {
			if failAt[item.Index] {
				return exec.Result{Code: 1, Output: "boom"}
			}
			return exec.Result{Fields: map[string]string{"id": fmt.Sprintf("a%d", item.Index+1)}}
		})
	}
}

func TestCreateBatchAllSucceed(t *testing.T) {
	t.Parallel()
	c := &Creator{Runner: quietRunner(), Zones: 3}
	p := pool.New("volume")
	series := stats.NewSeries("volume.create")
	var times Times
	var seen []Item

	err := c.CreateBatch(context.Background(), 3, series, p, nil, "id", 10*time.Second,
		scriptedCreate(nil, &seen), &times)

	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "a2", "a3"}, p.IDs())
	assert.Equal(t, 3, series.Len())
	assert.Equal(t, 3, times.Len())
	// Round-robin zone assignment.
	assert.Equal(t, []int{0, 1, 2}, []int{seen[0].Zone, seen[1].Zone, seen[2].Zone})
}

func TestCreateBatchZeroQuantity(t *testing.T) {
	t.Parallel()
	c := &Creator{Runner: quietRunner()}
	p := pool.New("volume")
	series := stats.NewSeries("volume.create")

	err := c.CreateBatch(context.Background(), 0, series, p, nil, "id", 0, scriptedCreate(nil, nil), nil)

	require.NoError(t, err)
	assert.Zero(t, p.Len())
	assert.Zero(t, series.Len())
}

func TestCreateBatchFailsFastLeavingPartialPool(t *testing.T) {
	t.Parallel()
	c := &Creator{Runner: quietRunner()}
	p := pool.New("server")
	series := stats.NewSeries("server.create")
	var seen []Item

	err := c.CreateBatch(context.Background(), 5, series, p, nil, "id", 0,
		scriptedCreate(map[int]bool{2: true}, &seen), nil)

	require.Error(t, err)
	// Items 0 and 1 remain; no further items were attempted.
	assert.Equal(t, []string{"a1", "a2"}, p.IDs())
	assert.Equal(t, 2, series.Len())
	assert.Len(t, seen, 3)
}

func TestCreateBatchDependentPoolsPairByIndex(t *testing.T) {
	t.Parallel()
	c := &Creator{Runner: quietRunner()}
	servers := pool.New("server")
	servers.Push(pool.Handle{ID: "s1"})
	servers.Push(pool.Handle{ID: "s2"})

	ports := pool.New("port")
	series := stats.NewSeries("port.create")
	var seen []Item

	err := c.CreateBatch(context.Background(), 2, series, ports, []*pool.Pool{servers}, "id", 0,
		scriptedCreate(nil, &seen), nil)

	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, seen[0].Deps)
	assert.Equal(t, []string{"s2"}, seen[1].Deps)
}

func TestCreateBatchShortDependentPool(t *testing.T) {
	t.Parallel()
	c := &Creator{Runner: quietRunner()}
	servers := pool.New("server")
	servers.Push(pool.Handle{ID: "s1"})
	ports := pool.New("port")
	series := stats.NewSeries("port.create")

	err := c.CreateBatch(context.Background(), 2, series, ports, []*pool.Pool{servers}, "id", 0,
		scriptedCreate(nil, nil), nil)

	require.Error(t, err)
	assert.Equal(t, 1, ports.Len())
}

func TestCreateBatchMissingIDField(t *testing.T) {
	t.Parallel()
	c := &Creator{Runner: quietRunner()}
	p := pool.New("net")
	series := stats.NewSeries("net.create")

	tmpl := func(Item) exec.Action {
		return exec.NewFuncAction("create", func(context.Context) exec.Result {
			return exec.Result{Fields: map[string]string{"status": "ACTIVE"}}
		})
	}
	err := c.CreateBatch(context.Background(), 1, series, p, nil, "id", 0, tmpl, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), `"id"`)
	assert.Zero(t, p.Len())
}
