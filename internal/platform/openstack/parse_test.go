package openstack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const showOutput = `
+---------------------------+--------------------------------------+
| Field                     | Value                                |
+---------------------------+--------------------------------------+
| admin_state_up            | UP                                   |
| id                        | 39a06cd0-ffdb-4e03-a136-51ffbbcbed95 |
| name                      | apimon-net-0                         |
| status                    | ACTIVE                               |
+---------------------------+--------------------------------------+
`

const listOutput = `
+--------------------------------------+--------------+--------+
| ID                                   | Name         | Status |
+--------------------------------------+--------------+--------+
| 39a06cd0-ffdb-4e03-a136-51ffbbcbed95 | apimon-vm-0  | ACTIVE |
| 5b3e6ec9-0d41-4dd1-a5e4-33b1f9e43fb1 | apimon-vm-1  | BUILD  |
+--------------------------------------+--------------+--------+
`

func TestParseShow(t *testing.T) {
	t.Parallel()
	fields := ParseShow(showOutput)
	assert.Equal(t, "39a06cd0-ffdb-4e03-a136-51ffbbcbed95", fields["id"])
	assert.Equal(t, "ACTIVE", fields["status"])
	assert.Equal(t, "apimon-net-0", fields["name"])
	// The header row is not a field.
	_, present := fields["Field"]
	assert.False(t, present)
}

func TestParseList(t *testing.T) {
	t.Parallel()
	rows := ParseList(listOutput)
	require.Len(t, rows, 2)
	// Headers are lowercased, so listing rows share the show-table keys.
	assert.Equal(t, "apimon-vm-0", rows[0]["name"])
	assert.Equal(t, "ACTIVE", rows[0]["status"])
	assert.Equal(t, "BUILD", rows[1]["status"])
	assert.Equal(t, "5b3e6ec9-0d41-4dd1-a5e4-33b1f9e43fb1", rows[1]["id"])
}

func TestParseListEmptyOutput(t *testing.T) {
	t.Parallel()
	assert.Empty(t, ParseList(""))
	assert.Empty(t, ParseList("no resources found\n"))
}

func TestParseAddresses(t *testing.T) {
	t.Parallel()
	addrs := ParseAddresses("apimon-net-0=10.250.0.14, 185.128.118.51")
	assert.Equal(t, []string{"10.250.0.14", "185.128.118.51"}, addrs)
	assert.Equal(t, []string{"10.0.0.1"}, ParseAddresses("10.0.0.1"))
	assert.Empty(t, ParseAddresses(""))
}
