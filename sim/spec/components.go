package spec

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ComponentCall is a single parsed constructor entry from the component
// manifest, e.g. SIS('diarrheal_diseases') or BasePopulation().
// Arguments are always single-quoted strings in the manifest.
type ComponentCall struct {
	Name string
	Args []string
}

// ParseComponentCall parses a manifest entry of the form Name('a', 'b').
// The name must be an identifier and every argument must be single-quoted.
func ParseComponentCall(s string) (ComponentCall, error) {
	var call ComponentCall
	raw := strings.TrimSpace(s)
	open := strings.IndexByte(raw, '(')
	if open < 0 || !strings.HasSuffix(raw, ")") {
		return call, fmt.Errorf("component %q is not a constructor call", s)
	}
	name := raw[:open]
	if !isIdentifier(name) {
		return call, fmt.Errorf("component %q: invalid name %q", s, name)
	}
	call.Name = name
	inner := strings.TrimSpace(raw[open+1 : len(raw)-1])
	if inner == "" {
		return call, nil
	}
	for _, part := range splitArgs(inner) {
		arg := strings.TrimSpace(part)
		if len(arg) < 2 || arg[0] != '\'' || arg[len(arg)-1] != '\'' {
			return call, fmt.Errorf("component %q: argument %s must be single-quoted", s, arg)
		}
		val := arg[1 : len(arg)-1]
		if strings.ContainsRune(val, '\'') {
			return call, fmt.Errorf("component %q: argument %s contains a stray quote", s, arg)
		}
		call.Args = append(call.Args, val)
	}
	return call, nil
}

// String renders the call back in manifest form.
func (c ComponentCall) String() string {
	if len(c.Args) == 0 {
		return c.Name + "()"
	}
	quoted := make([]string, len(c.Args))
	for i, a := range c.Args {
		quoted[i] = "'" + a + "'"
	}
	return c.Name + "(" + strings.Join(quoted, ", ") + ")"
}

// Arg returns argument i, or an error naming the call when it is absent.
func (c ComponentCall) Arg(i int) (string, error) {
	if i >= len(c.Args) {
		return "", fmt.Errorf("%s: missing argument %d", c.String(), i)
	}
	return c.Args[i], nil
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// splitArgs splits on commas. Arguments are quoted strings without escapes,
// so commas inside quotes are the only case to respect.
func splitArgs(s string) []string {
	var parts []string
	var buf strings.Builder
	inQuote := false
	for _, r := range s {
		switch {
		case r == '\'':
			inQuote = !inQuote
			buf.WriteRune(r)
		case r == ',' && !inQuote:
			parts = append(parts, buf.String())
			buf.Reset()
		default:
			buf.WriteRune(r)
		}
	}
	parts = append(parts, buf.String())
	return parts
}

// ComponentTree is the ordered component manifest. Each node is either a
// mapping of named sub-groups or a sequence of constructor calls; document
// order is preserved because it fixes component registration order.
type ComponentTree struct {
	Groups []ComponentGroup
	Calls  []ComponentCall
}

// ComponentGroup is one named branch of the manifest, e.g. the
// "population" group under "vivarium_public_health".
type ComponentGroup struct {
	Name     string
	Children ComponentTree
}

// ComponentRef is a flattened manifest entry: the dotted group path joined
// with the parsed call, e.g. Path "vivarium_public_health.population" for
// BasePopulation().
type ComponentRef struct {
	Path string
	Call ComponentCall
}

// UnmarshalYAML decodes a manifest node, preserving group and call order.
func (t *ComponentTree) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		for _, item := range node.Content {
			if item.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: component entry must be a string", item.Line)
			}
			call, err := ParseComponentCall(item.Value)
			if err != nil {
				return fmt.Errorf("line %d: %w", item.Line, err)
			}
			t.Calls = append(t.Calls, call)
		}
	case yaml.MappingNode:
		for i := 0; i < len(node.Content); i += 2 {
			key, val := node.Content[i], node.Content[i+1]
			var child ComponentTree
			if err := child.UnmarshalYAML(val); err != nil {
				return err
			}
			t.Groups = append(t.Groups, ComponentGroup{Name: key.Value, Children: child})
		}
	default:
		return fmt.Errorf("line %d: components must be a mapping or a sequence", node.Line)
	}
	return nil
}

// MarshalYAML re-encodes the manifest with the original ordering.
func (t ComponentTree) MarshalYAML() (interface{}, error) {
	return t.yamlNode(), nil
}

func (t ComponentTree) yamlNode() *yaml.Node {
	if len(t.Groups) > 0 {
		node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, g := range t.Groups {
			key := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: g.Name}
			node.Content = append(node.Content, key, g.Children.yamlNode())
		}
		return node
	}
	node := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	for _, c := range t.Calls {
		node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: c.String()})
	}
	return node
}

// Flatten walks the manifest in document order and returns every call with
// its dotted group path.
func (t ComponentTree) Flatten() []ComponentRef {
	var refs []ComponentRef
	t.flattenInto("", &refs)
	return refs
}

func (t ComponentTree) flattenInto(path string, refs *[]ComponentRef) {
	for _, c := range t.Calls {
		*refs = append(*refs, ComponentRef{Path: path, Call: c})
	}
	for _, g := range t.Groups {
		child := g.Name
		if path != "" {
			child = path + "." + g.Name
		}
		g.Children.flattenInto(child, refs)
	}
}

// IsEmpty reports whether the manifest declares no components at all.
func (t ComponentTree) IsEmpty() bool {
	return len(t.Flatten()) == 0
}

// Declares reports whether any manifest entry matches name with the given
// first argument. An empty arg matches zero-argument calls.
func (t ComponentTree) Declares(name, arg string) bool {
	for _, ref := range t.Flatten() {
		if ref.Call.Name != name {
			continue
		}
		if arg == "" && len(ref.Call.Args) == 0 {
			return true
		}
		if len(ref.Call.Args) > 0 && ref.Call.Args[0] == arg {
			return true
		}
	}
	return false
}
