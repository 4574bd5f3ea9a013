// Package l2ports owns Layer 2 (Ports) of the behaviour data model.
//
// Responsibilities: reducing per-frame port keypoints to one centroid per
// port and checking that the proximity radii of the three ports are disjoint.
// Key types: Locator, ConfidenceLocator, MedianLocator, Geometry.
//
// Dependency rule: L2 may depend on L1, but never on L3+.
package l2ports
