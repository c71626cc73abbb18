// Package openstack binds the monitor's action interface to the
// OpenStack command line client. Commands run as watched subprocesses;
// their table output is parsed into structured results so the engine
// extracts ids and statuses by field name instead of scraping text.
package openstack

import (
	"strings"
)

// ParseShow parses the two-column table `openstack <kind> show` prints
// into a field map:
//
//	+--------+--------------------------------------+
//	| Field  | Value                                |
//	+--------+--------------------------------------+
//	| id     | 39a06...                             |
//	| status | ACTIVE                               |
//	+--------+--------------------------------------+
func ParseShow(output string) map[string]string {
	fields := make(map[string]string)
	for _, line := range strings.Split(output, "\n") {
		cells := splitRow(line)
		if len(cells) != 2 {
			continue
		}
		key := cells[0]
		if key == "" || key == "Field" {
			continue
		}
		fields[key] = cells[1]
	}
	return fields
}

// ParseList parses the multi-column listing table into one field map
// per row. Header names are lowercased so listing rows use the same
// keys as show tables ("ID" and "id" address the same field), which is
// what lets one kind description drive both the per-item and the bulk
// poller.
func ParseList(output string) []map[string]string {
	var header []string
	var rows []map[string]string
	for _, line := range strings.Split(output, "\n") {
		cells := splitRow(line)
		if len(cells) < 2 {
			continue
		}
		if header == nil {
			header = make([]string, len(cells))
			for i, cell := range cells {
				header[i] = strings.ToLower(cell)
			}
			continue
		}
		row := make(map[string]string, len(header))
		for i, cell := range cells {
			if i < len(header) {
				row[header[i]] = cell
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// splitRow splits one `| a | b |` table line into trimmed cells,
// returning nil for separator and non-table lines.
func splitRow(line string) []string {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "|") {
		return nil
	}
	parts := strings.Split(strings.Trim(line, "|"), "|")
	cells := make([]string, 0, len(parts))
	for _, p := range parts {
		cells = append(cells, strings.TrimSpace(p))
	}
	return cells
}
