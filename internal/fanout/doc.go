// Package fanout runs the two task fan-out shapes of the fanout command.
//
// Sequential spawns one task at a time and awaits it before spawning the
// next, so the side effects of its tasks are strictly ordered. Concurrent
// spawns all of its tasks back to back and then waits for all of them at
// once; the order of their side effects is up to the Go scheduler.
//
// Both print Sentinel once every task has been observed to finish, and
// neither prints it when a task failed (unless the join policy is
// permissive).
package fanout
