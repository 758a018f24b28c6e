package production

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/comalice/tilewall/internal/primitives"
	"gopkg.in/yaml.v3"
)

// Status is a point-in-time view of the coordinator.
type Status struct {
	Time      float64             `json:"time" yaml:"time"`
	Tick      uint64              `json:"tick" yaml:"tick"`
	Machine   string              `json:"machine" yaml:"machine"`
	State     string              `json:"state" yaml:"state"`
	Epoch     uint64              `json:"epoch" yaml:"epoch"`
	Module    string              `json:"module" yaml:"module"`
	Playlist  []string            `json:"playlist" yaml:"playlist"`
	Tiles     []string            `json:"tiles" yaml:"tiles"`
	Instances primitives.Snapshot `json:"instances" yaml:"instances"`
	Context   map[string]any      `json:"context,omitempty" yaml:"context,omitempty"`
}

// StatusFormats lists the formats Export accepts.
var StatusFormats = []string{"json", "yaml", "dot"}

// Export renders s as json, yaml or dot.
func (s Status) Export(format string) ([]byte, string, error) {
	switch format {
	case "", "json":
		data, err := json.MarshalIndent(s, "", "  ")
		if err != nil {
			return nil, "", fmt.Errorf("json marshal: %w", err)
		}
		return data, "application/json", nil
	case "yaml":
		data, err := yaml.Marshal(s)
		if err != nil {
			return nil, "", fmt.Errorf("yaml marshal: %w", err)
		}
		return data, "application/yaml", nil
	case "dot":
		return []byte(s.DOT()), "text/vnd.graphviz", nil
	default:
		return nil, "", fmt.Errorf("unknown status format %q (have %v)", format, StatusFormats)
	}
}

// DOT renders the playlist as a Graphviz cycle with the showing module
// highlighted and each module's open instances hanging off it.
func (s Status) DOT() string {
	var buf bytes.Buffer
	buf.WriteString(`digraph Playlist {
  rankdir=LR;
  node [shape=box, fontsize=10, style=rounded];
  edge [fontsize=9];
`)
	for _, name := range s.Playlist {
		style := ""
		if name == s.Module {
			style = ` style=filled fillcolor=lightgreen`
		}
		fmt.Fprintf(&buf, "  %q [label=%q%s];\n", name, name, style)
	}
	for i, name := range s.Playlist {
		next := s.Playlist[(i+1)%len(s.Playlist)]
		fmt.Fprintf(&buf, "  %q -> %q;\n", name, next)
	}
	if len(s.Instances) > 0 {
		buf.WriteString("  subgraph cluster_instances {\n    label=\"instances\";\n")
		for _, id := range sortedKeys(s.Instances) {
			label := fmt.Sprintf("%s (%d channels)", id, len(s.Instances[id]))
			fmt.Fprintf(&buf, "    %q [label=%q shape=ellipse];\n", id, label)
		}
		buf.WriteString("  }\n")
		if s.Module != "" {
			for _, id := range sortedKeys(s.Instances) {
				fmt.Fprintf(&buf, "  %q -> %q [style=dashed];\n", s.Module, id)
			}
		}
	}
	buf.WriteString("}\n")
	return buf.String()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
