// Package preflight provides readiness checks for the filesystem paths and
// external services shelf depends on.
//
// These checks run in two contexts:
//   - The CLI "shelf doctor" command runs RunAll and renders the results.
//   - Individual check functions back targeted diagnostics, such as probing
//     the prediction endpoint before enabling the feature.
//
// Each check is gated by its config toggle -- disabled features are skipped.
package preflight
