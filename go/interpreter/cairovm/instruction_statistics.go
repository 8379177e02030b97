// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package cairovm

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// statisticRunner counts executed instructions by class and pairs of
// consecutive classes.
type statisticRunner struct {
	mutex sync.Mutex
	stats *statistics
}

func (s *statisticRunner) run(c *context) error {
	stats := statsCollector{stats: newStatistics()}
	status := statusRunning
	var executionError error
	for status == statusRunning {
		if c.pc.Segment == 0 && c.pc != c.end {
			if instr, err := c.program.instruction(c.pc.Offset); err == nil {
				stats.next(instr.class())
			}
		}
		status, executionError = step(c)
		if executionError != nil {
			break
		}
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.stats == nil {
		s.stats = newStatistics()
	}
	s.stats.insert(stats.stats)
	return executionError
}

func (s *statisticRunner) getSummary() string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.stats == nil {
		s.stats = newStatistics()
	}
	return s.stats.print()
}

func (s *statisticRunner) reset() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.stats = newStatistics()
}

type statistics struct {
	count       uint64
	singleCount map[string]uint64
	pairCount   map[[2]string]uint64
}

func newStatistics() *statistics {
	return &statistics{
		singleCount: map[string]uint64{},
		pairCount:   map[[2]string]uint64{},
	}
}

func (s *statistics) insert(src *statistics) {
	s.count += src.count
	for k, v := range src.singleCount {
		s.singleCount[k] += v
	}
	for k, v := range src.pairCount {
		s.pairCount[k] += v
	}
}

func (s *statistics) print() string {

	type entry struct {
		value string
		count uint64
	}

	getTopN := func(data map[string]uint64, n int) []entry {
		list := make([]entry, 0, len(data))
		for k, c := range data {
			list = append(list, entry{k, c})
		}
		sort.Slice(list, func(i, j int) bool {
			if list[i].count != list[j].count {
				return list[i].count > list[j].count
			}
			return list[i].value < list[j].value
		})
		if len(list) < n {
			return list
		}
		return list[0:n]
	}

	pairs := make(map[string]uint64, len(s.pairCount))
	for k, v := range s.pairCount {
		pairs[fmt.Sprintf("%-15v%-15v", k[0], k[1])] = v
	}

	builder := strings.Builder{}
	write := func(format string, args ...interface{}) {
		builder.WriteString(fmt.Sprintf(format, args...))
	}

	percent := func(count uint64) float32 {
		if s.count == 0 {
			return 0
		}
		return float32(count*100) / float32(s.count)
	}

	write("\n----- Statistics ------\n")
	write("\nSteps: %d\n", s.count)
	write("\nSingles:\n")
	for _, e := range getTopN(s.singleCount, 10) {
		write("\t%-30v: %d (%.2f%%)\n", e.value, e.count, percent(e.count))
	}
	write("\nPairs:\n")
	for _, e := range getTopN(pairs, 5) {
		write("\t%-30v: %d (%.2f%%)\n", e.value, e.count, percent(e.count))
	}
	write("\n")

	return builder.String()
}

type statsCollector struct {
	stats *statistics
	last  string
}

func (s *statsCollector) next(class string) {
	s.stats.count++
	s.stats.singleCount[class]++
	if s.stats.count > 1 {
		s.stats.pairCount[[2]string{s.last, class}]++
	}
	s.last = class
}
