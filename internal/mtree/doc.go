// Package mtree implements the metric tree strategy: directory entries hold a
// copy of a routing object and a covering radius, and every entry stores its
// distance to the routing object of its parent, which lets searches skip
// entries with the triangle inequality before computing any distance.
//
// Correct pruning requires a metric distance. Other distance functions are
// accepted but may cause searches to miss objects.
package mtree
