// Package l5cohort owns Layer 5 (Cohort) of the behaviour data model.
//
// Responsibilities: per-recording summaries built from l4metrics, the summary
// table written for downstream tools, and per-group statistics across
// recordings. Metrics are never pooled across recordings when a recording's
// own summary is computed.
//
// Dependency rule: L5 may depend on L1-L4.
package l5cohort
