// # Description
//
// Package cfg models the control flow graph (CFG) a symbolic execution runs over.
//
// ## Control Flow Graph (CFG)
//
// A CFG is a representation, using graph notation, of all paths that might be traversed
// through a program during its execution. In a CFG:
//
//   - Each node in the graph represents a basic block: an ordered list of operation trees.
//   - A block leaves through a fall-through branch and, when it ends in a condition,
//     a conditional branch taken when the branch value is true.
//   - Regions (try, catch, filter, finally, local lifetime) nest over contiguous blocks
//     and describe where exceptions are handled.
//
// Every graph starts with an empty entry block and ends with an exit block that
// return paths branch to.
//
// ## Package Functionality
//
//  1. Graph construction with a Builder, which assigns ordinals, nests regions and
//     validates the result.
//  2. Go source lowering with `ParseFile`, `FromFile` or `FromFunc`; basic blocks come
//     from golang.org/x/tools/go/cfg.
//  3. Loop membership with `NewLoopDetector`.
//  4. DOT output with `PrintDot` and rendering with `RenderToGraphVizFile`.
package cfg
