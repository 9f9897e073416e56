package relays

import "fmt"

// Transaction submission and tracking errors
var (
	ErrInvalidGasPrice     = fmt.Errorf("invalid gas price: above hard ceiling")
	ErrNoSigningCredential = fmt.Errorf("no signing credential: neither private key nor unlock code configured")
	ErrBroadcastFailed     = fmt.Errorf("broadcast failed")
	ErrStuckTransaction    = fmt.Errorf("transaction stuck: no receipt after full polling budget")
	ErrRevertedTransaction = fmt.Errorf("transaction mined but reverted")
)
