package supervisor

// Handle is the caller-facing façade for a running Supervisor.
// Both methods queue the command on the mailbox and return without waiting
// for it to be processed, leaving ordering and execution to the Supervisor's
// own goroutine. The mailbox holds up to mailboxCapacity pending commands; a
// post beyond that waits until the Supervisor dequeues one. Calling either
// after Terminate has already been posted is a silent no-op — the command is
// discarded with the mailbox, or its send on the closed mailbox is recovered.
type Handle struct {
	mailbox chan message
}

// Reload posts a reload command carrying the new bundle reference. The
// Supervisor processes it in arrival order relative to any other pending
// command.
func (h *Handle) Reload(ref BundleRef) {
	defer func() { recover() }()
	h.mailbox <- reloadMsg{bundle: ref}
}

// Terminate posts a terminate command. After the Supervisor processes it
// the mailbox is closed and the Supervisor's goroutine exits.
func (h *Handle) Terminate() {
	defer func() { recover() }()
	h.mailbox <- terminateMsg{}
}
