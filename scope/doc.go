// Package scope provides structured-concurrency primitives for Go.
//
// A Scope owns the tasks it spawns, provides a join point (Wait), and
// propagates cancellation and errors predictably according to a Policy.
//
// On top of the fire-and-wait Go method, Spawn returns a single-use Handle
// for one task so the caller can await that task alone, and Join is a
// barrier over several handles that collects each task's Outcome without
// failing fast:
//
//	s := scope.New(ctx, scope.Supervisor)
//	h1 := scope.Spawn(s, work1)
//	h2 := scope.Spawn(s, work2)
//	outs := scope.Join(ctx, h1, h2)
//	if err := outs.Err(); err != nil {
//		// inspect outs.Failed()
//	}
package scope
