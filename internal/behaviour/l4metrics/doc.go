// Package l4metrics owns Layer 4 (Metrics) of the behaviour data model.
//
// Responsibilities: stateless kinematic and spatial metrics over one
// trajectory or a set of trajectories. Distances are reported in
// millimetres and speeds in metres per second via units.Calibration.
//
// Dependency rule: L4 may depend on L1-L3, but never on L5.
package l4metrics
