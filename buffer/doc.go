// Package buffer provides the managed byte store behind a shape: one
// contiguous host-side allocation sized to the shape's total byte size,
// holding a reference on the shape for its lifetime. Typed views
// reinterpret the backing bytes in place for host-side inspection and
// seeding; dispatch stages the same bytes into guest memory.
package buffer
