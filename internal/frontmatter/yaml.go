package frontmatter

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseYAML parses raw YAML frontmatter (without --- delimiters) and flattens
// it to strings. Scalars keep their source text, so a date such as 05/03/2020
// is not reinterpreted. Sequences of scalars are joined with ", " and nested
// mappings become dotted keys.
func ParseYAML(frontmatter []byte) (FrontMatter, error) {
	meta := FrontMatter{}
	if len(strings.TrimSpace(string(frontmatter))) == 0 {
		return meta, nil
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(frontmatter, &doc); err != nil {
		return nil, fmt.Errorf("parse yaml frontmatter: %w", err)
	}
	if len(doc.Content) == 0 {
		return meta, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("parse yaml frontmatter: expected a mapping, got %s", kindName(root.Kind))
	}
	flatten(meta, "", root)
	return meta, nil
}

func flatten(meta FrontMatter, prefix string, node *yaml.Node) {
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		if prefix != "" {
			key = prefix + "." + key
		}
		value := node.Content[i+1]
		if value.Kind == yaml.AliasNode && value.Alias != nil {
			value = value.Alias
		}
		switch value.Kind {
		case yaml.MappingNode:
			flatten(meta, key, value)
		case yaml.SequenceNode:
			items := make([]string, 0, len(value.Content))
			for _, item := range value.Content {
				if item.Kind == yaml.ScalarNode {
					items = append(items, item.Value)
				}
			}
			meta.Set(key, strings.Join(items, ", "))
		default:
			if value.Tag == "!!null" {
				meta.Set(key, "")
				continue
			}
			meta.Set(key, value.Value)
		}
	}
}

func kindName(k yaml.Kind) string {
	switch k {
	case yaml.SequenceNode:
		return "sequence"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	default:
		return "document"
	}
}
