package partition

import (
	"fmt"
	"os"
	"regexp"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/l3aro/carch/pkg/graph"
	"github.com/l3aro/carch/pkg/symtab"
)

// Rule maps function names matching a pattern to a named business module.
// Rules are applied in order; the first match wins.
type Rule struct {
	Pattern string `yaml:"pattern" json:"pattern"`
	Module  string `yaml:"module" json:"module"`
}

type compiledRule struct {
	re     *regexp.Regexp
	module string
}

// Classifier assigns business-module labels to functions from a rule table.
// It ships with no built-in rules: projects describe their own layering in
// the rules file.
type Classifier struct {
	rules []compiledRule
}

// LoadRules reads a YAML rule file, a list of {pattern, module} entries.
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules file: %w", err)
	}
	var rules []Rule
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parsing rules file %s: %w", path, err)
	}
	return rules, nil
}

// NewClassifier compiles the rule table.
func NewClassifier(rules []Rule) (*Classifier, error) {
	c := &Classifier{rules: make([]compiledRule, 0, len(rules))}
	for _, r := range rules {
		if r.Module == "" {
			return nil, fmt.Errorf("rule %q: empty module name", r.Pattern)
		}
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", r.Pattern, err)
		}
		c.rules = append(c.rules, compiledRule{re: re, module: r.Module})
	}
	return c, nil
}

// Classify returns the business module for a function name. The second
// return is false when no rule matches.
func (c *Classifier) Classify(name string) (string, bool) {
	for _, r := range c.rules {
		if r.re.MatchString(name) {
			return r.module, true
		}
	}
	return "", false
}

// BusinessNode is one node of the business-logic graph.
type BusinessNode struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// BusinessEdge relates business-graph nodes. Kind is one of contains,
// depends_on, or uses.
type BusinessEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Kind   string `json:"kind"`
}

// BusinessGraph is the classified view of the program: business modules,
// their member functions, call dependencies between modules, and the global
// variables each module touches.
type BusinessGraph struct {
	Nodes []BusinessNode `json:"nodes"`
	Edges []BusinessEdge `json:"edges"`
}

// BuildBusinessGraph classifies the defined functions and assembles the
// module view. Functions no rule matches are left out.
func (c *Classifier) BuildBusinessGraph(g *graph.Graph, symbols *symtab.Table) BusinessGraph {
	moduleOf := make(map[string]string)
	modules := make(map[string]bool)
	for _, name := range g.CallNodes() {
		if module, ok := c.Classify(name); ok {
			moduleOf[name] = module
			modules[module] = true
		}
	}

	var bg BusinessGraph
	for _, module := range sortedKeys(modules) {
		bg.Nodes = append(bg.Nodes, BusinessNode{ID: module, Type: "module"})
	}
	for _, name := range g.CallNodes() {
		module, ok := moduleOf[name]
		if !ok {
			continue
		}
		bg.Nodes = append(bg.Nodes, BusinessNode{ID: name, Type: "function"})
		bg.Edges = append(bg.Edges, BusinessEdge{Source: module, Target: name, Kind: "contains"})
	}

	depends := make(map[string]bool)
	for _, e := range g.CallEdges() {
		src, okSrc := moduleOf[e.Caller]
		dst, okDst := moduleOf[e.Callee]
		if !okSrc || !okDst || src == dst {
			continue
		}
		depends[src+"\x00"+dst] = true
	}
	for _, key := range sortedKeys(depends) {
		src, dst := splitPair(key)
		bg.Edges = append(bg.Edges, BusinessEdge{Source: src, Target: dst, Kind: "depends_on"})
	}

	uses := make(map[string]bool)
	usedVars := make(map[string]bool)
	for _, v := range symbols.Variables() {
		if !v.IsGlobal {
			continue
		}
		for _, ref := range v.References {
			if module, ok := moduleOf[ref.Function]; ok {
				uses[module+"\x00"+v.Name] = true
				usedVars[v.Name] = true
			}
		}
	}
	for _, name := range sortedKeys(usedVars) {
		bg.Nodes = append(bg.Nodes, BusinessNode{ID: name, Type: "global_variable"})
	}
	for _, key := range sortedKeys(uses) {
		module, variable := splitPair(key)
		bg.Edges = append(bg.Edges, BusinessEdge{Source: module, Target: variable, Kind: "uses"})
	}
	return bg
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func splitPair(key string) (string, string) {
	for i := 0; i < len(key); i++ {
		if key[i] == 0 {
			return key[:i], key[i+1:]
		}
	}
	return key, ""
}
