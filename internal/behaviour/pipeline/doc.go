// Package pipeline runs the behaviour layers over every recording of a
// manifest.
//
// It wires L1 pose ingestion, L2 port location, L3 segmentation and L5
// summaries together with the adapters (trajectory records, summary CSV,
// sqlite run history, metrics). The pipeline does not own domain logic; it
// delegates to the layer packages.
//
// Recordings are independent. Workers process them concurrently and a single
// collector commits results in manifest order, so outputs do not depend on
// the worker count.
package pipeline
