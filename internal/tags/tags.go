// Package tags reads the tag vocabulary file: a YAML document with the
// tags every card must carry (BasicTags) and a tree of optional tags
// (Tags) that is flattened into Anki's "parent::child" form.
package tags

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Separator joins the levels of a hierarchical tag.
const Separator = "::"

// Set is the loaded vocabulary.
type Set struct {
	Required []string
	Optional []string
}

// Load reads and parses the tags file at path.
func Load(path string) (Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Set{}, fmt.Errorf("read tags file: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return Set{}, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse decodes a tags document. Key order in Tags is preserved.
func Parse(data []byte) (Set, error) {
	var doc struct {
		BasicTags yaml.Node `yaml:"BasicTags"`
		Tags      yaml.Node `yaml:"Tags"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Set{}, fmt.Errorf("parse tags YAML: %w", err)
	}

	var s Set
	switch doc.BasicTags.Kind {
	case 0:
	case yaml.ScalarNode:
		if doc.BasicTags.Value != "" {
			s.Required = []string{doc.BasicTags.Value}
		}
	case yaml.SequenceNode:
		for _, n := range doc.BasicTags.Content {
			if n.Kind != yaml.ScalarNode {
				return Set{}, fmt.Errorf("BasicTags line %d: expected a string", n.Line)
			}
			s.Required = append(s.Required, n.Value)
		}
	default:
		return Set{}, fmt.Errorf("BasicTags line %d: expected a string or a list", doc.BasicTags.Line)
	}

	s.Optional = flatten(&doc.Tags, "")
	return s, nil
}

// flatten walks a tag tree depth first. Every mapping key is a tag of its
// own and the prefix of its children.
func flatten(n *yaml.Node, prefix string) []string {
	var out []string
	switch n.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			tag := prefix + n.Content[i].Value
			out = append(out, tag)
			if v := n.Content[i+1]; v.Kind == yaml.MappingNode || v.Kind == yaml.SequenceNode {
				out = append(out, flatten(v, tag+Separator)...)
			}
		}
	case yaml.SequenceNode:
		for _, c := range n.Content {
			out = append(out, flatten(c, prefix)...)
		}
	case yaml.ScalarNode:
		if n.Tag != "!!null" && n.Value != "" {
			out = append(out, prefix+n.Value)
		}
	}
	return out
}
