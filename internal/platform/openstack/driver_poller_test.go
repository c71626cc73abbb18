//go:build unix

package openstack

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plusserver/openstack-apimonitor/internal/exec"
	"github.com/plusserver/openstack-apimonitor/internal/monitor"
	"github.com/plusserver/openstack-apimonitor/internal/orchestration"
	"github.com/plusserver/openstack-apimonitor/internal/pool"
	"github.com/plusserver/openstack-apimonitor/internal/stats"
)

const serverListing = `+--------------------------------------+------------+--------+
| ID                                   | Name       | Status |
+--------------------------------------+------------+--------+
| 9c0a6cd0-ffdb-4e03-a136-51ffbbcbed95 | probe-vm-0 | ACTIVE |
+--------------------------------------+------------+--------+
`

// fakeClient writes a client stand-in that prints output regardless of
// its arguments, so listing actions run against canned tables.
func fakeClient(t *testing.T, output string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "openstack")
	script := "#!/bin/sh\ncat <<'TABLE'\n" + output + "TABLE\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

// The kind's field names must address the rows its own listing action
// produces, otherwise the bulk wait can never match a tracked item.
func TestServerListFeedsBulkWait(t *testing.T) {
	t.Parallel()
	d := testDriver(t)
	d.Binary = fakeClient(t, serverListing)

	var server monitor.Kind
	for _, k := range d.Kinds() {
		if k.Name == "server" {
			server = k
		}
	}
	require.Equal(t, "server", server.Name)

	p := pool.New("server")
	p.Push(pool.Handle{ID: "9c0a6cd0-ffdb-4e03-a136-51ffbbcbed95", CreatedAt: time.Now()})
	times := &orchestration.Times{}
	times.Set(0, time.Now())

	w := &orchestration.ListPoller{
		Runner:   exec.NewRunner(nil, nil, nil, nil),
		Rounds:   3,
		Interval: time.Millisecond,
	}
	series := stats.NewSeries("server_list")
	completion := stats.NewSeries("server_active")

	errs := w.WaitForList(context.Background(), series, p, completion, times,
		server.WaitState, server.AltState, server.StatusField, server.IDField,
		time.Minute, server.List)

	assert.Zero(t, errs)
	assert.Equal(t, 1, completion.Len())
	// ACTIVE from the first listing, so one round suffices.
	assert.Equal(t, 1, series.Len())
}

// Listing rows must also expose the name column under the kind's name
// field, which is what the sweeper matches leftovers on.
func TestListingRowsCarryKindFields(t *testing.T) {
	t.Parallel()
	d := testDriver(t)
	d.Binary = fakeClient(t, serverListing)

	for _, k := range d.Kinds() {
		if k.Name != "server" {
			continue
		}
		res := k.List().Run()
		require.Zero(t, res.Code)
		require.Len(t, res.Table, 1)
		assert.Equal(t, "9c0a6cd0-ffdb-4e03-a136-51ffbbcbed95", res.Table[0][k.IDField])
		assert.Equal(t, "probe-vm-0", res.Table[0][k.NameField])
		assert.Equal(t, "ACTIVE", res.Table[0][k.StatusField])
	}
}
