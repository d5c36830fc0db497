package metrics

const (
	LabelResource = "resource"
	LabelOutcome  = "outcome"
	LabelGlobal   = "global"
	LabelLockMode = "mode"
)

const (
	ResourceSubstate = "substate"
)

const (
	OutcomeCommitted = "committed"
	OutcomeFailed    = "failed"
)

const (
	namespaceKernel  = "kernel"
	namespaceStorage = "storage"
)

const (
	subsystemTransaction = "transaction"
	subsystemFrame       = "frame"
	subsystemNode        = "node"
	subsystemSubstate    = "substate"
	subsystemCache       = "cache"
)
