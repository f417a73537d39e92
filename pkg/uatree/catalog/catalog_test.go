package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyByNamePattern(t *testing.T) {
	cfg := DefaultConfig()

	require.Equal(t, []string{"Blueprints"}, Classify(cfg, "BP_Player_C", nil))
	require.Equal(t, []string{"DataTables/Misc"}, Classify(cfg, "DT_Loot", nil))
	require.Empty(t, Classify(cfg, "SomeOtherExport", nil))
}

func TestClassifyByTagIntersection(t *testing.T) {
	cfg := Config{Rules: []Rule{
		{Tags: []string{"weapon", "armor"}, Category: "Items"},
	}}

	require.Equal(t, []string{"Items"}, Classify(cfg, "Anything", []string{"armor"}))
	require.Empty(t, Classify(cfg, "Anything", []string{"quest"}))
}

func TestBuildTreeNestsByCategoryPath(t *testing.T) {
	matches := map[string][]string{
		"BP_Player_C": {"Blueprints"},
		"DT_Loot":     {"DataTables/Misc"},
	}

	root := BuildTree(matches)
	blueprints, ok := root.Children["Blueprints"]
	require.True(t, ok)
	require.Equal(t, []string{"BP_Player_C"}, blueprints.Exports)

	dataTables, ok := root.Children["DataTables"]
	require.True(t, ok)
	misc, ok := dataTables.Children["Misc"]
	require.True(t, ok)
	require.Equal(t, []string{"DT_Loot"}, misc.Exports)
}

func TestBuildTreeGroupsMultipleExportsUnderSameCategory(t *testing.T) {
	matches := map[string][]string{
		"BP_A_C": {"Blueprints"},
		"BP_B_C": {"Blueprints"},
	}

	root := BuildTree(matches)
	require.ElementsMatch(t, []string{"BP_A_C", "BP_B_C"}, root.Children["Blueprints"].Exports)
}
