package relays

// Hook is called with the built transaction just before it is signed and
// broadcast. Returning an error aborts the broadcast.
type Hook func(tx *UnsignedTx) error

// OutcomeHook observes the terminal outcome of every confirmation tracker,
// including trackers spawned by resubmissions. Use it to alert on failed,
// timed-out or abandoned transactions.
type OutcomeHook func(outcome TrackOutcome)
