package ports

import "github.com/bft-labs/tagrelay/internal/domain"

// Indicator shows scanner state to the operator.
type Indicator interface {
	// Show displays a signal. Implementations must not block for long.
	Show(sig domain.Signal)

	// SetBrokerStatus records broker connectivity; it selects the waiting signal.
	SetBrokerStatus(connected bool)

	// Waiting shows the idle signal for the current broker status.
	Waiting()
}
