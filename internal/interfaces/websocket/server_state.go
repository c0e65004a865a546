package websocket

// ServerState replaces the teacher's process-wide singletons with a value
// owned by the entry point and threaded through the router (spec §9). Only
// the admission-control block in handlers.go reads it. It is filled in once
// when the application is built and nothing mutates it afterwards, so
// handlers read it without locking.
type ServerState struct {
	MaxConcurrentExecutions int
	ExecutionsHalted        bool
	MaintenanceMode         bool
}
