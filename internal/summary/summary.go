// Package summary keeps an append-only registry of named wall-clock timers
// for the decomposition phases. The driver records, the CLI prints at
// shutdown.
package summary

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

type entry struct {
	total time.Duration
	count int
}

var (
	mu      sync.Mutex
	entries = map[string]*entry{}
)

// Reset clears the registry.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	entries = map[string]*entry{}
}

// Record adds one measurement under name.
func Record(name string, d time.Duration) {
	mu.Lock()
	defer mu.Unlock()
	e, ok := entries[name]
	if !ok {
		e = &entry{}
		entries[name] = e
	}
	e.total += d
	e.count++
}

// Time starts a timer for name and returns the function that stops and
// records it.
//
//	defer summary.Time("gram")()
func Time(name string) func() {
	start := time.Now()
	return func() {
		Record(name, time.Since(start))
	}
}

// String formats the registry as an aligned table, one phase per line,
// sorted by total time descending.
func String() string {
	mu.Lock()
	defer mu.Unlock()

	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if entries[names[i]].total != entries[names[j]].total {
			return entries[names[i]].total > entries[names[j]].total
		}
		return names[i] < names[j]
	})

	var b strings.Builder
	fmt.Fprintf(&b, "%-16s %10s %8s %12s\n", "phase", "total", "calls", "per-call")
	for _, name := range names {
		e := entries[name]
		per := e.total / time.Duration(e.count)
		fmt.Fprintf(&b, "%-16s %10v %8d %12v\n", name, e.total.Round(time.Microsecond), e.count, per.Round(time.Microsecond))
	}
	return b.String()
}
