package main

import (
	"cmp"
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/joeycumines/go-scheduler/scheduler"
)

var errInvalidScenario = errors.New("lanesim: invalid scenario")

// scenarioFile is the HCL schema of a scenario file.
type scenarioFile struct {
	FrameRate int           `hcl:"frame_rate,optional"`
	Roots     []rootBlock   `hcl:"root,block"`
	Updates   []updateBlock `hcl:"update,block"`
}

type rootBlock struct {
	Name   string `hcl:"name,label"`
	Work   int    `hcl:"work"`
	UnitMS int64  `hcl:"unit_ms,optional"`
}

type updateBlock struct {
	Root       string `hcl:"root"`
	At         int64  `hcl:"at"`
	Kind       string `hcl:"kind,optional"`
	SuspendFor int64  `hcl:"suspend_for,optional"`
}

type updateKind int

const (
	// the lane follows the scheduler priority the update is made at
	kindPriority updateKind = iota
	kindSync
	kindDiscrete
	kindTransition
)

type scenario struct {
	frameRate int
	roots     []rootSpec
	updates   []updateSpec
}

type rootSpec struct {
	name   string
	work   int
	unitMS int64
}

type updateSpec struct {
	root       int
	at         int64
	kind       updateKind
	priority   scheduler.Priority
	suspendFor int64
}

func loadScenario(path string) (*scenario, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseScenario(src, path)
}

// parseScenario decodes and validates a scenario. Updates are returned in
// the order they happen.
func parseScenario(src []byte, filename string) (*scenario, error) {
	file, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse scenario %s: %w", filename, diags)
	}

	var raw scenarioFile
	if diags := gohcl.DecodeBody(file.Body, nil, &raw); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode scenario %s: %w", filename, diags)
	}

	if raw.FrameRate < 0 || raw.FrameRate > 125 {
		return nil, fmt.Errorf("%w: frame_rate %d: %w", errInvalidScenario, raw.FrameRate, scheduler.ErrInvalidFrameRate)
	}
	if len(raw.Roots) == 0 {
		return nil, fmt.Errorf("%w: no roots", errInvalidScenario)
	}

	sc := &scenario{frameRate: raw.FrameRate}
	index := make(map[string]int, len(raw.Roots))
	for _, r := range raw.Roots {
		if _, ok := index[r.Name]; ok {
			return nil, fmt.Errorf("%w: duplicate root %q", errInvalidScenario, r.Name)
		}
		if r.Work <= 0 {
			return nil, fmt.Errorf("%w: root %q: work must be positive", errInvalidScenario, r.Name)
		}
		if r.UnitMS < 0 {
			return nil, fmt.Errorf("%w: root %q: unit_ms must not be negative", errInvalidScenario, r.Name)
		}
		if r.UnitMS == 0 {
			r.UnitMS = 1
		}
		index[r.Name] = len(sc.roots)
		sc.roots = append(sc.roots, rootSpec{name: r.Name, work: r.Work, unitMS: r.UnitMS})
	}

	for i, u := range raw.Updates {
		root, ok := index[u.Root]
		if !ok {
			return nil, fmt.Errorf("%w: update %d: unknown root %q", errInvalidScenario, i, u.Root)
		}
		if u.At < 0 || u.SuspendFor < 0 {
			return nil, fmt.Errorf("%w: update %d: times must not be negative", errInvalidScenario, i)
		}
		spec := updateSpec{root: root, at: u.At, suspendFor: u.SuspendFor, priority: scheduler.NormalPriority}
		switch u.Kind {
		case "sync":
			spec.kind = kindSync
		case "discrete":
			spec.kind = kindDiscrete
		case "transition":
			spec.kind = kindTransition
		case "":
		default:
			priority, err := scheduler.ParsePriority(u.Kind)
			if err != nil {
				return nil, fmt.Errorf("%w: update %d: %w", errInvalidScenario, i, err)
			}
			spec.priority = priority
		}
		sc.updates = append(sc.updates, spec)
	}
	slices.SortStableFunc(sc.updates, func(a, b updateSpec) int {
		return cmp.Compare(a.at, b.at)
	})

	return sc, nil
}
