package rules

import "strings"

// Settings names the methods whose effects the rules know. A name matches
// a method equal to it or ending in "." followed by it, so "Add" matches
// both "Add" and "List.Add".
type Settings struct {
	// NullCheckMethods throw when their first argument is null.
	NullCheckMethods []string `yaml:"null_check_methods" toml:"null_check_methods" json:"null_check_methods"`
	// StringNullOrEmptyMethods return true for a null or empty argument.
	StringNullOrEmptyMethods []string `yaml:"string_null_or_empty_methods" toml:"string_null_or_empty_methods" json:"string_null_or_empty_methods"`
	CollectionAddMethods     []string `yaml:"collection_add_methods" toml:"collection_add_methods" json:"collection_add_methods"`
	CollectionClearMethods   []string `yaml:"collection_clear_methods" toml:"collection_clear_methods" json:"collection_clear_methods"`
	CollectionAnyMethods     []string `yaml:"collection_any_methods" toml:"collection_any_methods" json:"collection_any_methods"`
	CollectionCountMethods   []string `yaml:"collection_count_methods" toml:"collection_count_methods" json:"collection_count_methods"`
}

func DefaultSettings() Settings {
	return Settings{
		NullCheckMethods:         []string{"ThrowIfNull", "RequireNonNull", "requireNonNull", "NotNull"},
		StringNullOrEmptyMethods: []string{"IsNullOrEmpty", "IsNullOrWhiteSpace"},
		CollectionAddMethods:     []string{"Add", "Push", "Enqueue", "Insert", "append"},
		CollectionClearMethods:   []string{"Clear", "clear"},
		CollectionAnyMethods:     []string{"Any"},
		CollectionCountMethods:   []string{"Count", "Len", "len"},
	}
}

type effect int

const (
	effectNone effect = iota
	effectNullCheck
	effectStringNullOrEmpty
	effectAdd
	effectClear
	effectAny
	effectCount
)

func (s Settings) effect(method string) effect {
	switch {
	case method == "":
		return effectNone
	case matches(s.NullCheckMethods, method):
		return effectNullCheck
	case matches(s.StringNullOrEmptyMethods, method):
		return effectStringNullOrEmpty
	case matches(s.CollectionAddMethods, method):
		return effectAdd
	case matches(s.CollectionClearMethods, method):
		return effectClear
	case matches(s.CollectionAnyMethods, method):
		return effectAny
	case matches(s.CollectionCountMethods, method):
		return effectCount
	}
	return effectNone
}

func matches(names []string, method string) bool {
	for _, n := range names {
		if method == n || strings.HasSuffix(method, "."+n) {
			return true
		}
	}
	return false
}
