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
	"slices"
	"testing"

	gomock "go.uber.org/mock/gomock"
	"golang.org/x/exp/maps"
)

func TestInterpreterRegistry_NameCollisionsAreDetected(t *testing.T) {
	const name = "something-just-for-this-test"
	factory := func(any) (Interpreter, error) {
		return nil, nil
	}
	if err := RegisterInterpreterFactory(name, factory); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := RegisterInterpreterFactory(name, factory); err == nil {
		t.Fatalf("expected error, got nil")
	}
}

func TestInterpreterRegistry_NilFactoriesAreRejected(t *testing.T) {
	if err := RegisterInterpreterFactory("something", nil); err == nil {
		t.Fatalf("expected error, got nil")
	}
}

func TestInterpreterRegistry_LookupIsCaseInsensitive(t *testing.T) {
	ctrl := gomock.NewController(t)
	interpreter := NewMockInterpreter(ctrl)
	err := RegisterInterpreterFactory("Case-Test", func(config any) (Interpreter, error) {
		if config != "cfg" {
			t.Errorf("unexpected config %v", config)
		}
		return interpreter, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := NewInterpreter("CASE-test", "cfg")
	if err != nil || got != interpreter {
		t.Errorf("unexpected lookup result %v, %v", got, err)
	}
	if _, err := NewInterpreter("unknown"); err == nil {
		t.Errorf("expected error for unknown interpreter")
	}
	if _, err := NewInterpreter("case-test", 1, 2); err == nil {
		t.Errorf("expected error for too many configurations")
	}
}

func TestProcessorRegistry_RegisteredFactoryIsUsedByGetProcessor(t *testing.T) {
	ctrl := gomock.NewController(t)
	interpreter := NewMockInterpreter(ctrl)
	processor := NewMockProcessor(ctrl)

	name := "processor-test"
	RegisterProcessorFactory(name, func(i Interpreter) Processor {
		if i != interpreter {
			t.Fatalf("unexpected interpreter passed to factory")
		}
		return processor
	})

	if got := GetProcessor(name, interpreter); got != processor {
		t.Errorf("unexpected processor %v", got)
	}
	factories := maps.Keys(GetAllRegisteredProcessorFactories())
	if !slices.Contains(factories, name) {
		t.Errorf("%v not found in list of factories, found %v", name, factories)
	}
	if got := GetProcessor("something odd", nil); got != nil {
		t.Errorf("expected nil processor, got %v", got)
	}
}

func TestProcessorRegistry_FailToRegisterNilFactory(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Errorf("expected panic, got nil")
		}
	}()
	RegisterProcessorFactory("nil-factory", nil)
}

func TestInterpreterRegistry_MustRegisterPanicsOnDuplicate(t *testing.T) {
	name := "must-register-test"
	factory := func(any) (Interpreter, error) { return nil, nil }
	MustRegisterInterpreterFactory(name, factory)
	defer func() {
		if recover() == nil {
			t.Errorf("expected duplicate registration to panic")
		}
	}()
	MustRegisterInterpreterFactory(name, factory)
}
