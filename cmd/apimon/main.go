// Package main is the entry point for the apimon CLI.
//
// apimon continuously exercises a cloud control plane: it provisions a
// chain of networks, security groups, volumes, servers and floating
// IPs, waits for each batch to converge, probes the booted servers over
// SSH, and tears everything down again, collecting latency statistics
// and raising alarms on failures.
//
// Commands: init, run, sweep, version.
//
// For detailed usage information, run:
//
//	apimon --help
package main

import (
	"fmt"
	"os"

	"github.com/plusserver/openstack-apimonitor/cmd/apimon/commands"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)
	if err := commands.Root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
