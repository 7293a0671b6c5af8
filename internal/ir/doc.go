// Package ir provides the intermediate representation the invprop passes run on.
//
// A Unit owns every value, block and procedure in flat arenas. Entities refer to
// each other through handles (ValueID, BlockID, ProcID) rather than pointers, so
// the def-use graph may contain cycles (phis) without ownership ambiguity. Handle
// 0 is reserved as the invalid handle in every arena.
//
// This package imports nothing internal; every other internal package imports ir.
//
// Key design constraints:
//   - Passes never restructure the graph; the only in-place mutation they perform
//     is on memory-operation alignment (Value.Align)
//   - Operation kinds are a closed set (Op) with kind-specific accessors
//   - Iteration order is always declaration order for reproducible output
package ir
