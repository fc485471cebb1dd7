package blockrev_test

// Shared test constants.
const (
	testBlockSize   = 64
	testBlocks      = 8
	testSeed        = 1
	testLargeBlock  = 256 << 10
	testManySteps   = 40
	testScenarioMul = 3
)
