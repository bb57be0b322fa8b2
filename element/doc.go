// Package element describes the fixed per-record field layout of buffer
// data: scalar kinds, vector widths, array sizes, and the byte offsets
// that follow from them.
//
// An Element is immutable once built and is compared by identity: the
// shape registry interns shapes keyed on the *Element pointer, so two
// structurally equal elements built separately produce distinct shape
// entries. Build the element once and share it.
//
// Fields whose names begin with the padding marker '#' occupy space but
// are invisible to GPU attribute derivation.
package element
