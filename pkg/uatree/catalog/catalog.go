// Package catalog taxonomizes decoded exports into a nested tree by
// regex and tag matching, configured explicitly by the caller rather
// than through package-level state — there is no process-wide rule set
// here, only what Config carries in.
package catalog

import (
	"regexp"
	"sort"
	"strings"
)

// Rule maps exports whose name matches Pattern, or whose tags intersect
// Tags, into Category.
type Rule struct {
	Pattern  *regexp.Regexp
	Tags     []string
	Category string
}

// Config is an explicit, caller-supplied rule set. There is no default
// instance exported here; DefaultConfig constructs one.
type Config struct {
	Rules []Rule
}

// DefaultConfig returns the built-in rule set the CLI's --catalog mode
// always uses (the CLI has no option to load other rules): exports whose
// name ends in "_C" are classed as Blueprints (Unreal's convention for
// generated blueprint classes), and exports prefixed "DT_" or suffixed
// "_DataTable" are classed as DataTables/Misc. This is one reasonable
// default, not the one true taxonomy.
func DefaultConfig() Config {
	return Config{
		Rules: []Rule{
			{Pattern: regexp.MustCompile(`_C$`), Category: "Blueprints"},
			{Pattern: regexp.MustCompile(`^DT_|_DataTable$`), Category: "DataTables/Misc"},
		},
	}
}

// Classify walks cfg.Rules in order and collects every Category whose
// Pattern matches exportName, or whose Tags intersect tags. The
// returned slice preserves rule order and may contain duplicates if
// more than one rule names the same category; callers that want a
// deduplicated set should route through BuildTree.
func Classify(cfg Config, exportName string, tags []string) []string {
	var categories []string
	for _, rule := range cfg.Rules {
		if rule.Pattern != nil && rule.Pattern.MatchString(exportName) {
			categories = append(categories, rule.Category)
			continue
		}
		if intersects(rule.Tags, tags) {
			categories = append(categories, rule.Category)
		}
	}
	return categories
}

func intersects(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, s := range a {
		set[s] = struct{}{}
	}
	for _, s := range b {
		if _, ok := set[s]; ok {
			return true
		}
	}
	return false
}

// Node is one level of the nested catalog tree. Children is empty at a
// leaf that holds exports directly.
type Node struct {
	Name     string           `json:"name"`
	Exports  []string         `json:"exports,omitempty"`
	Children map[string]*Node `json:"children,omitempty"`
}

func newNode(name string) *Node {
	return &Node{Name: name, Children: map[string]*Node{}}
}

// BuildTree assembles the nested catalog from a map of export name to
// the categories Classify matched for it. Each category string is
// split on "/" into a tree path; an export with multiple matched
// categories appears once under each.
func BuildTree(matches map[string][]string) *Node {
	root := newNode("")
	exportNames := make([]string, 0, len(matches))
	for name := range matches {
		exportNames = append(exportNames, name)
	}
	sort.Strings(exportNames)

	for _, exportName := range exportNames {
		categories := matches[exportName]
		sorted := append([]string(nil), categories...)
		sort.Strings(sorted)
		for i, category := range sorted {
			if category == "" || (i > 0 && category == sorted[i-1]) {
				continue
			}
			insert(root, strings.Split(category, "/"), exportName)
		}
	}
	return root
}

func insert(n *Node, path []string, exportName string) {
	if len(path) == 0 {
		n.Exports = append(n.Exports, exportName)
		return
	}
	head, rest := path[0], path[1:]
	child, ok := n.Children[head]
	if !ok {
		child = newNode(head)
		n.Children[head] = child
	}
	insert(child, rest, exportName)
}
