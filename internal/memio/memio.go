// Package memio reads and writes arbitrary addresses in the agent's own
// address space. On Mach hosts accesses go through the task port and failures
// come back as errors; elsewhere the address is dereferenced directly and a
// bad address takes the process down.
package memio
