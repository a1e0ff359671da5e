package framework

// TestLogger receives progress events as the suite runs. The runner's console output is one
// implementation.
type TestLogger interface {
	TestStarted(id TestID)
	TestError(id TestID, err error)
	TestFinished(id TestID, outcome TestOutcome)
	TestSkipped(id TestID, reason string)
}

// TestOutcome describes a test that ran to completion, with what a reader needs to find the
// test's data in the service under test.
type TestOutcome struct {
	Failed bool
	// Namespace is the certname namespace that the test's records were written under, or
	// empty if the test did not set one.
	Namespace string
	// Commands are the ids the service assigned to the test's own submissions, in the order
	// they were accepted. Subtests report their commands separately.
	Commands    []string
	DebugOutput CapturedOutput
}

type nullTestLogger struct{}

func (nullTestLogger) TestStarted(TestID)               {}
func (nullTestLogger) TestError(TestID, error)          {}
func (nullTestLogger) TestFinished(TestID, TestOutcome) {}
func (nullTestLogger) TestSkipped(TestID, string)       {}
