// Package l3segments owns Layer 3 (Segments) of the behaviour data model.
//
// Responsibilities: turning a recording's nose track into discrete
// center-to-side trajectories with an explicit per-frame state machine.
// Key types: Segmenter, Config, Stats, State.
//
// Dependency rule: L3 may depend on L1-L2, but never on L4+.
// Persistence of the resulting TrajectorySet lives in storage/jsonstore.
package l3segments
