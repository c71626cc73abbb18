package monitor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/plusserver/openstack-apimonitor/internal/exec"
)

// Sweeper reclaims leftover resources by name prefix: everything an
// abandoned or crashed monitor run left behind carries the configured
// prefix, so a listing per kind finds it all. Kinds are swept in
// reverse chain order so dependents go before their dependencies.
type Sweeper struct {
	Driver Driver
	Runner *exec.Runner
	Prefix string
	// Timeout bounds each listing and delete call.
	Timeout time.Duration
	// DryRun lists matches without deleting them.
	DryRun bool
	Log    *logrus.Logger
}

// SweepResult tallies one sweep.
type SweepResult struct {
	Matched int
	Deleted int
	Failed  int
}

// Sweep walks the kind chain backwards and deletes every listed
// resource whose name starts with the prefix. Individual failures are
// logged and counted, never fatal; a failed listing skips the kind.
func (s *Sweeper) Sweep(ctx context.Context) (SweepResult, error) {
	if s.Prefix == "" {
		return SweepResult{}, fmt.Errorf("refusing to sweep with an empty prefix")
	}
	log := s.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	var res SweepResult
	kinds := s.Driver.Kinds()
	for i := len(kinds) - 1; i >= 0; i-- {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		k := kinds[i]
		if k.NameField == "" {
			// No name column to match on. Such kinds are swept
			// implicitly, through the parent they belong to.
			continue
		}

		out := s.Runner.RunQuiet(k.List(), s.Timeout)
		if out.Class != exec.Success {
			log.WithFields(logrus.Fields{"kind": k.Name, "code": out.Result.Code}).
				Error("listing failed, kind skipped")
			res.Failed++
			continue
		}

		for _, row := range out.Result.Table {
			if !strings.HasPrefix(row[k.NameField], s.Prefix) {
				continue
			}
			id := row[k.IDField]
			res.Matched++
			if s.DryRun {
				log.WithFields(logrus.Fields{"kind": k.Name, "id": id, "name": row[k.NameField]}).
					Info("would delete")
				continue
			}
			del := s.Runner.RunQuiet(k.Delete(id), s.Timeout)
			if del.Class == exec.Success {
				res.Deleted++
				log.WithFields(logrus.Fields{"kind": k.Name, "id": id}).Info("deleted")
			} else {
				res.Failed++
				log.WithFields(logrus.Fields{"kind": k.Name, "id": id, "code": del.Result.Code}).
					Error("delete failed")
			}
		}
	}
	return res, nil
}
