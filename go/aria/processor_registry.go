// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package aria

import (
	"fmt"
	"strings"
	"sync"

	"golang.org/x/exp/maps"
)

// GetProcessor performs a lookup for the given name (case-insensitive) and
// creates a processor instance using the given interpreter. The result is
// nil if no factory was registered under the given name.
func GetProcessor(name string, interpreter Interpreter) Processor {
	factory := GetProcessorFactory(name)
	if factory == nil {
		return nil
	}
	return factory(interpreter)
}

// GetProcessorFactory performs a lookup for the given name (case-insensitive)
// in the registry. The result is nil if no factory was registered under the
// given name.
func GetProcessorFactory(name string) ProcessorFactory {
	processorRegistryLock.Lock()
	defer processorRegistryLock.Unlock()
	return processorRegistry[strings.ToLower(name)]
}

// GetAllRegisteredProcessorFactories obtains all registered implementations.
func GetAllRegisteredProcessorFactories() map[string]ProcessorFactory {
	processorRegistryLock.Lock()
	defer processorRegistryLock.Unlock()
	return maps.Clone(processorRegistry)
}

// RegisterProcessorFactory can be used to register a new Processor
// implementation. The name is not case-sensitive, and a panic is triggered
// if an implementation was bound to the same name before, or the
// implementation is nil. This function is intended to be used by package
// initialization code.
func RegisterProcessorFactory(name string, impl ProcessorFactory) {
	key := strings.ToLower(name)
	if impl == nil {
		panic(fmt.Sprintf("invalid initialization: cannot register nil-processor using `%s`", key))
	}
	processorRegistryLock.Lock()
	defer processorRegistryLock.Unlock()
	if _, found := processorRegistry[key]; found {
		panic(fmt.Sprintf("invalid initialization: multiple Processors registered for `%s`", key))
	}
	processorRegistry[key] = impl
}

// ProcessorFactory is the type of a function that creates a new Processor
// using a given interpreter.
type ProcessorFactory func(Interpreter) Processor

var (
	processorRegistry     = map[string]ProcessorFactory{}
	processorRegistryLock sync.Mutex
)
