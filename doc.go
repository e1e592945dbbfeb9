// Package odin provides the public API surface of the detector data
// pipeline: the Frame and Plugin contracts a third party implements to add
// a processing stage, the typed startup configuration the receiver and
// processor processes load, and the metrics/testing helpers that support
// both. The receiver and processor binaries (cmd/odin-receiver,
// cmd/odin-processor) are built from the same internal packages this
// facade re-exports, so an embedder links against this package instead of
// reaching into internal/.
package odin
