// Package code inspects generated Python scripts and assembles them into a
// runnable entry point for the bridge harness.
//
// Upstream generators emit two shapes of script. Some are flat lists of
// definitions and assignments that assume an implicit runner; others are
// self-contained programs with their own entry point or top-level logic.
// [Analyze] tells them apart and [Assemble] wraps each in the matching
// harness, so a script neither silently does nothing nor runs twice.
//
// # Strategies
//
//   - [Wrapped]: the script is re-indented into a harness function, and every
//     top-level function it defines but never calls gets an explicit call
//     appended.
//   - [Dynamic]: the script is embedded verbatim and executed in a namespace
//     pre-seeded with parameters and capability stubs. Afterwards the entry
//     function runs if the script never calls it; without an entry function,
//     every top-level function never referenced elsewhere is invoked.
//
// Both harnesses bind parameters as plain names, make the capability stubs
// importable, and print start/end framing lines.
//
// Scanning is line based but string aware: the contents of string literals,
// including multi-line ones, and comments are never mistaken for code.
package code
