// Package realtime hosts a Scheduler on a dedicated OS thread.
//
// The kernel itself is cooperative and single threaded: one goroutine calls
// Step or Run, and producers on any other goroutine post events. Runtime
// supplies that goroutine, locks it to its OS thread and, on Linux,
// optionally pins the thread to one CPU so dispatch latency is not disturbed
// by migrations.
//
// # Example Usage
//
//	s, _ := rtkernel.NewScheduler(rtkernel.DefaultConfig())
//	// register and start actors ...
//	rt := realtime.NewRuntime(s, realtime.Config{Pin: true, CPU: 2})
//	if err := rt.Start(ctx); err != nil {
//		return err
//	}
//	defer rt.Stop()
//
// When nothing is ready the scheduler's idle function runs on the same
// thread; the default one blocks until the next post, so an idle runtime
// does not spin.
package realtime
