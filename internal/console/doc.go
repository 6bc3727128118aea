// Package console is the call-session core of the operator console.
//
// A Console sits between the transport and the presentation layer:
//
//	transport  --connected/disconnected/gate-status-->  Console
//	Console    --Admit/EndCall-->                       session.Coordinator
//	operator   --LogIssue/ActuateGate/EndCall-->        Console --> resolve.Workflows
//
// Reconnecting keeps the live call and re-registers the agent. Losing the
// transport discards the live call with reason "disconnect"; nothing is
// resolved on its behalf.
package console
