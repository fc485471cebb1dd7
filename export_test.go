package blockrev

// Export internal symbols for black-box tests in blockrev_test package.
var (
	WithStepObserver = withStepObserver
	Shift            = shift
	SlotCount        = slotCount
)
