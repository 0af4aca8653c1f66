package collector

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/procfs"

	"netwatch/internal/models"
)

type Options struct {
	ProcPath     string
	SkipLoopback bool
	// Interfaces restricts sampling to the named interfaces. Empty means all.
	Interfaces []string
}

// NetDevSource reads cumulative interface counters from /proc/net/dev and
// estimates rates against the previous read of each interface.
type NetDevSource struct {
	fs           procfs.FS
	clock        clock.Clock
	skipLoopback bool
	allow        map[string]struct{}

	mu   sync.Mutex
	prev map[string]reading
}

type reading struct {
	ts time.Time
	rx uint64
	tx uint64
}

func NewNetDevSource(opts Options, clk clock.Clock) (*NetDevSource, error) {
	path := opts.ProcPath
	if path == "" {
		path = procfs.DefaultMountPoint
	}
	fs, err := procfs.NewFS(path)
	if err != nil {
		return nil, fmt.Errorf("open procfs %s: %w", path, err)
	}
	if clk == nil {
		clk = clock.New()
	}
	var allow map[string]struct{}
	for _, name := range opts.Interfaces {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if allow == nil {
			allow = map[string]struct{}{}
		}
		allow[name] = struct{}{}
	}
	return &NetDevSource{
		fs:           fs,
		clock:        clk,
		skipLoopback: opts.SkipLoopback,
		allow:        allow,
		prev:         map[string]reading{},
	}, nil
}

func (s *NetDevSource) Sample(ctx context.Context) ([]models.InterfaceCounters, error) {
	if err := ctx.Err(); err != nil {
		return nil, &models.SourceError{Op: "sample", Err: err}
	}
	dev, err := s.fs.NetDev()
	if err != nil {
		return nil, &models.SourceError{Op: "read net/dev", Err: err}
	}
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.InterfaceCounters, 0, len(dev))
	for name, line := range dev {
		if !s.include(name) {
			continue
		}
		c := models.InterfaceCounters{
			Interface: name,
			Timestamp: now,
			RxBytes:   line.RxBytes,
			TxBytes:   line.TxBytes,
			RxPackets: line.RxPackets,
			TxPackets: line.TxPackets,
			RxErrors:  line.RxErrors,
			TxErrors:  line.TxErrors,
		}
		if p, ok := s.prev[name]; ok {
			elapsed := now.Sub(p.ts)
			c.RxSec = rate(line.RxBytes, p.rx, elapsed)
			c.TxSec = rate(line.TxBytes, p.tx, elapsed)
		}
		s.prev[name] = reading{ts: now, rx: line.RxBytes, tx: line.TxBytes}
		out = append(out, c)
	}
	for name := range s.prev {
		if _, ok := dev[name]; !ok {
			delete(s.prev, name)
		}
	}
	slices.SortFunc(out, func(a, b models.InterfaceCounters) int {
		return strings.Compare(a.Interface, b.Interface)
	})
	return out, nil
}

func (s *NetDevSource) include(name string) bool {
	if s.skipLoopback && name == "lo" {
		return false
	}
	if s.allow == nil {
		return true
	}
	_, ok := s.allow[name]
	return ok
}

// rate is unknown when no time has passed or the counter went backwards
// (interface reset or wrap).
func rate(cur, prev uint64, elapsed time.Duration) *float64 {
	if elapsed <= 0 || cur < prev {
		return nil
	}
	v := float64(cur-prev) / elapsed.Seconds()
	return &v
}
