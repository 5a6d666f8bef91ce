// Package execshell runs a single external executable on behalf of a caller.
//
// ExecutableResolver maps a binary name and an optional directory hint to an
// invocation path, BuildCommand produces the plain or su-elevated argument
// vector, and Session starts the child, drains stdout and stderr concurrently,
// waits for exit, and exposes a Stop operation that races safely against
// normal completion.
package execshell
