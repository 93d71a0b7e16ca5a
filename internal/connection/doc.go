// Package connection owns the process-wide client handle to the hosted
// platform and its lifecycle.
//
// Browsers and laptops drop sockets in ways the transport cannot always
// self-report: networks flap, machines sleep, apps sit backgrounded for
// hours. Rather than repairing a broken handle in place, the manager rebuilds
// it deterministically on the two signals most correlated with a dead socket
// (regaining network, regaining foreground) and broadcasts the replacement so
// dependents can re-subscribe.
//
// The manager also disconnects the realtime transport after a prolonged
// background period to release socket buffers, without discarding the handle.
//
// One Manager exists per process. It is constructed explicitly and injected
// into dependents; nothing here is ambient global state.
package connection
