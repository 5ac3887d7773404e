// Package plate maps four corner clicks on a thermal image onto the wells
// of a multi-well sample plate.
//
// The four corners are classified into top-left, top-right, bottom-left and
// bottom-right by a sum heuristic: the corner with the smallest x+y is the
// top-left, the largest is the bottom-right, and of the remaining two the one
// with the larger x is the top-right. This only holds for plates that are
// roughly axis aligned; rotations beyond about 45 degrees are mislabelled.
// The grid math depends on this exact labelling, so it is kept as is.
//
// Wells are addressed as [column][row], and every sequence produced by this
// package (centers, labels, masks) is ordered column by column: 1A, 1B, ...,
// 2A, 2B, ...
package plate
