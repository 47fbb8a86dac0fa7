// Package rstar implements the spatial tree strategy: every entry carries a
// minimum bounding rectangle, insertion follows the R*-tree choose-subtree and
// split heuristics, and searches prune with the minimum distance from the
// query to a rectangle.
//
// Bulk loading supports Sort-Tile-Recursive packing, recursive splits along
// the axis of maximum extension and a plain one-dimensional sort.
package rstar
