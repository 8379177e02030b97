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

	"github.com/Fantom-foundation/Aria/go/aria"
	"github.com/ethereum/go-ethereum/metrics"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Program is a class prepared for execution: the bytecode is decoded once
// and hints are indexed by program counter. Programs are immutable and may
// be shared among concurrent runs.
type Program struct {
	class        *aria.CompiledClass
	instructions []decodedWord
	hints        map[uint64][]aria.Hint
}

// decodedWord is the result of decoding a word of the bytecode. Words
// holding immediates or data usually fail to decode; the error is only
// reported if the program counter reaches them.
type decodedWord struct {
	instruction Instruction
	err         error
}

// Load prepares a class for execution.
func Load(class *aria.CompiledClass) *Program {
	res := &Program{
		class:        class,
		instructions: make([]decodedWord, len(class.Bytecode)),
		hints:        make(map[uint64][]aria.Hint, len(class.Hints)),
	}
	for i, word := range class.Bytecode {
		instr, err := Decode(word)
		res.instructions[i] = decodedWord{instruction: instr, err: err}
	}
	for _, entry := range class.Hints {
		res.hints[entry.PC] = append(res.hints[entry.PC], entry.Hints...)
	}
	return res
}

func (p *Program) Class() *aria.CompiledClass {
	return p.class
}

// instruction returns the instruction at the given offset.
func (p *Program) instruction(offset uint64) (*Instruction, error) {
	if offset >= uint64(len(p.instructions)) {
		return nil, fmt.Errorf("%w: program counter %d outside of program", aria.ErrExecution, offset)
	}
	word := &p.instructions[offset]
	if word.err != nil {
		return nil, word.err
	}
	return &word.instruction, nil
}

// entryPoint resolves an entry point by type and selector.
func (p *Program) entryPoint(kind aria.EntryPointType, selector aria.Felt) (aria.EntryPoint, error) {
	ep, found := p.class.FindEntryPoint(kind, selector)
	if !found {
		return aria.EntryPoint{}, fmt.Errorf("%w: %v entry point %v", aria.ErrEntryPointNotFound, kind, selector)
	}
	if ep.Offset >= uint64(len(p.instructions)) {
		return aria.EntryPoint{}, fmt.Errorf("%w: entry point offset %d outside of program", aria.ErrInvalidInstruction, ep.Offset)
	}
	return ep, nil
}

// ProgramCacheConfig configures the cache of loaded programs.
type ProgramCacheConfig struct {
	// CacheSize is the maximum number of cached programs. If set to 0, a
	// default size is used. If negative, no cache is used.
	CacheSize int
}

const defaultProgramCacheSize = 1 << 12

var (
	cacheHits   = metrics.NewRegisteredCounter("cairovm/programs/hits", nil)
	cacheMisses = metrics.NewRegisteredCounter("cairovm/programs/misses", nil)
)

// ProgramCache maintains loaded programs indexed by class hash.
type ProgramCache struct {
	cache *lru.Cache[aria.ClassHash, *Program]
}

func NewProgramCache(config ProgramCacheConfig) (*ProgramCache, error) {
	if config.CacheSize == 0 {
		config.CacheSize = defaultProgramCacheSize
	}
	if config.CacheSize < 0 {
		return &ProgramCache{}, nil
	}
	cache, err := lru.New[aria.ClassHash, *Program](config.CacheSize)
	if err != nil {
		return nil, err
	}
	return &ProgramCache{cache: cache}, nil
}

// Get returns the program of the given class. The hash is assumed to be the
// valid hash of the class.
func (c *ProgramCache) Get(hash aria.ClassHash, class *aria.CompiledClass) *Program {
	if c.cache == nil {
		return Load(class)
	}
	if res, found := c.cache.Get(hash); found {
		cacheHits.Inc(1)
		return res
	}
	cacheMisses.Inc(1)
	res := Load(class)
	c.cache.Add(hash, res)
	return res
}
