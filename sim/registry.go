package sim

import (
	"fmt"
	"sort"

	"github.com/ihmeuw/vivarium-compass-sam/sim/spec"
)

// Component is a unit of model behavior instantiated from the manifest.
// Setup wires its columns, pipelines, streams, and listeners through the
// builder; the engine then drives it purely through events.
type Component interface {
	Name() string
	Setup(b *Builder) error
}

// Reporter is implemented by components that contribute columns to the
// run's final observation, typically observers.
type Reporter interface {
	Report(out *Observation)
}

// Factory builds a component from its manifest constructor call.
type Factory func(call spec.ComponentCall) (Component, error)

var componentFactories = make(map[string]Factory)

// RegisterComponent installs a factory under a constructor name. Builtin
// component packages call this from init. Panics on duplicates; two
// factories claiming one name is a wiring defect.
func RegisterComponent(name string, factory Factory) {
	if _, dup := componentFactories[name]; dup {
		panic(fmt.Sprintf("sim: component %q registered twice", name))
	}
	componentFactories[name] = factory
}

// KnownComponent reports whether a constructor name is registered.
func KnownComponent(name string) bool {
	_, ok := componentFactories[name]
	return ok
}

// KnownComponents lists the registered constructor names, sorted.
func KnownComponents() []string {
	names := make([]string, 0, len(componentFactories))
	for name := range componentFactories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResolveComponents instantiates every manifest entry in document order.
func ResolveComponents(tree spec.ComponentTree) ([]Component, error) {
	refs := tree.Flatten()
	components := make([]Component, 0, len(refs))
	for _, ref := range refs {
		factory, ok := componentFactories[ref.Call.Name]
		if !ok {
			return nil, fmt.Errorf("unknown component %s under %s", ref.Call, ref.Path)
		}
		c, err := factory(ref.Call)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", ref.Call, err)
		}
		components = append(components, c)
	}
	return components, nil
}
