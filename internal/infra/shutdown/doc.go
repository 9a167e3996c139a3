// Package shutdown provides graceful shutdown for SigMesh.
//
// A Handler waits for SIGINT, SIGTERM or an explicit Trigger and then runs
// the registered hooks in reverse order of registration under one shared
// timeout.
//
// Usage:
//
//	h := shutdown.NewHandler(30 * time.Second)
//	h.OnShutdown("http", srv.Shutdown)
//	err := h.Wait()
package shutdown
