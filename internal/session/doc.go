// Package session owns the console's single live help call.
//
// # Overview
//
// A Coordinator holds at most one Session. Gate events are admitted
// unconditionally: a new call replaces the one in the slot. Resolution
// workflows mark the call Resolving while they talk to the network and close
// it by session ID, so a result that arrives after the call was replaced is
// ignored instead of clearing the newer call.
//
// # States
//
//	Idle      -> Active     Admit
//	Active    -> Active     Admit (replace)
//	Active    -> Resolving  BeginResolution
//	Resolving -> Active     AbortResolution(id), or Admit (replace)
//	any       -> Idle       EndCall, End(id)
//
// # Threading
//
// Every transition runs on the goroutine started by Run. Operations send a
// request and wait for the reply, so callers may use the Coordinator from any
// goroutine. Current reads an atomically published snapshot and never waits.
//
// # Observers
//
// Observers receive OnAdmitted exactly once per admission and OnCleared once
// per clear, in transition order, on the loop goroutine. They must hand work
// off rather than block; notify.Dispatcher does this.
//
// # Re-raises
//
// With a dedupe.Window configured, an event with the same fingerprint as the
// live call seen within the window is treated as the gate re-raising that
// call. It is not re-admitted and observers are not notified again.
package session
