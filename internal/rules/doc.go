// Package rules implements the declarative rule model and the matching engine
// that decides a file's destination.
//
// A rule carries an implicitly AND-ed condition list, an exclusion list, an
// action, and a destination. Conditions form a tree: leaf predicates match
// file attributes (name, extension, size, age) and composite nodes (all, any,
// not) combine results with short-circuit evaluation. Evaluation is pure:
// first match in the total rule order wins, malformed condition values fail
// only that condition, and unknown kinds are treated as non-matching so old
// databases keep working after upgrades.
package rules
