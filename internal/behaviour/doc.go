// Package behaviour holds the shared data model for nose-tracking analysis
// of the three-port odour task.
//
// Layer packages build on these types in order:
//
//	l1pose     pose-table ingestion (keypoint x, y, likelihood per frame)
//	l2ports    port centroids and port geometry checks
//	l3segments center-to-side trajectory extraction
//	l4metrics  per-trajectory kinematic and deviation metrics
//	l5cohort   per-recording summaries and cohort statistics
//
// Dependency rule: a layer may import lower layers and this package, never a
// higher layer. Storage lives under storage/ and orchestration in pipeline/.
package behaviour
