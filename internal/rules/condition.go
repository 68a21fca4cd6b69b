package rules

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ConditionKind tags a condition tree node.
type ConditionKind string

const (
	KindExtensionEquals ConditionKind = "extension_equals"
	KindNameStartsWith  ConditionKind = "name_starts_with"
	KindNameContains    ConditionKind = "name_contains"
	KindNameEndsWith    ConditionKind = "name_ends_with"
	KindNameMatches     ConditionKind = "name_matches"
	KindSizeLargerThan  ConditionKind = "size_larger_than"
	KindSizeSmallerThan ConditionKind = "size_smaller_than"
	KindDateWithin      ConditionKind = "date_within"
	KindAll             ConditionKind = "all"
	KindAny             ConditionKind = "any"
	KindNot             ConditionKind = "not"
)

// Condition is one node of a rule's condition tree. Leaf kinds carry Value;
// composite kinds carry All, Any, or Not. The struct round-trips through JSON
// for storage.
type Condition struct {
	Kind  ConditionKind `json:"kind"`
	Value string        `json:"value,omitempty"`
	All   []Condition   `json:"all,omitempty"`
	Any   []Condition   `json:"any,omitempty"`
	Not   *Condition    `json:"not,omitempty"`
}

// Ext builds an extension_equals condition.
func Ext(value string) Condition { return Condition{Kind: KindExtensionEquals, Value: value} }

// NameStartsWith builds a name prefix condition.
func NameStartsWith(value string) Condition {
	return Condition{Kind: KindNameStartsWith, Value: value}
}

// NameContains builds a name substring condition.
func NameContains(value string) Condition { return Condition{Kind: KindNameContains, Value: value} }

// NameEndsWith builds a name suffix condition.
func NameEndsWith(value string) Condition { return Condition{Kind: KindNameEndsWith, Value: value} }

// NameMatches builds a glob condition evaluated against the file name.
func NameMatches(pattern string) Condition { return Condition{Kind: KindNameMatches, Value: pattern} }

// SizeLargerThan builds a strict greater-than size condition.
func SizeLargerThan(size string) Condition { return Condition{Kind: KindSizeLargerThan, Value: size} }

// SizeSmallerThan builds a strict less-than size condition.
func SizeSmallerThan(size string) Condition {
	return Condition{Kind: KindSizeSmallerThan, Value: size}
}

// DateWithin builds a recency condition on the file's modification time.
func DateWithin(window string) Condition { return Condition{Kind: KindDateWithin, Value: window} }

// AllOf combines conditions so every one must match.
func AllOf(conditions ...Condition) Condition { return Condition{Kind: KindAll, All: conditions} }

// AnyOf combines conditions so at least one must match.
func AnyOf(conditions ...Condition) Condition { return Condition{Kind: KindAny, Any: conditions} }

// NotOf inverts a condition.
func NotOf(condition Condition) Condition { return Condition{Kind: KindNot, Not: &condition} }

// ActionType is what a matched rule does with the file.
type ActionType string

const (
	ActionMove   ActionType = "move"
	ActionCopy   ActionType = "copy"
	ActionDelete ActionType = "delete"
)

// ParseAction converts a string into a known ActionType.
func ParseAction(value string) (ActionType, bool) {
	normalized := ActionType(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case ActionMove, ActionCopy, ActionDelete:
		return normalized, true
	}
	return "", false
}

// Rule is one declarative organization rule. Conditions are implicitly
// AND-ed; an empty condition list matches nothing. A rule whose exclusion
// list has any match is passed over even when its conditions hold.
type Rule struct {
	ID          int64
	Name        string
	Enabled     bool
	Conditions  []Condition
	Exclusions  []Condition
	Action      ActionType
	Destination string
	SortOrder   int
	CreatedAt   time.Time
}

// Validate rejects rules that could never act sensibly.
func (r *Rule) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("rule name is empty")
	}
	if _, ok := ParseAction(string(r.Action)); !ok {
		return fmt.Errorf("rule %q: unknown action %q", r.Name, r.Action)
	}
	if r.Action != ActionDelete && strings.TrimSpace(r.Destination) == "" {
		return fmt.Errorf("rule %q: destination is empty", r.Name)
	}
	if len(r.Conditions) == 0 {
		return fmt.Errorf("rule %q: no conditions", r.Name)
	}
	return nil
}

// EncodeConditions serializes a condition list for storage.
func EncodeConditions(conditions []Condition) (string, error) {
	if conditions == nil {
		conditions = []Condition{}
	}
	data, err := json.Marshal(conditions)
	if err != nil {
		return "", fmt.Errorf("encode conditions: %w", err)
	}
	return string(data), nil
}

// DecodeConditions deserializes a stored condition list. Empty input decodes
// to an empty list.
func DecodeConditions(data string) ([]Condition, error) {
	trimmed := strings.TrimSpace(data)
	if trimmed == "" {
		return []Condition{}, nil
	}
	var conditions []Condition
	if err := json.Unmarshal([]byte(trimmed), &conditions); err != nil {
		return nil, fmt.Errorf("decode conditions: %w", err)
	}
	return conditions, nil
}

// Sort orders rules by ascending sort order, ties broken by creation time and
// then identifier, so evaluation order is total and deterministic.
func Sort(ruleset []Rule) {
	sort.SliceStable(ruleset, func(i, j int) bool {
		a, b := ruleset[i], ruleset[j]
		if a.SortOrder != b.SortOrder {
			return a.SortOrder < b.SortOrder
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}
