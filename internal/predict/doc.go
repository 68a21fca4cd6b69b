// Package predict talks to an optional local inference sidecar that scores
// destinations for files nothing else classified. The daemon works fully
// without it; a disabled predictor never suggests.
package predict
