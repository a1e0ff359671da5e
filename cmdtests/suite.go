package cmdtests

import (
	"github.com/cmdhub/command-contract-tests/framework"
)

// RunTestSuite runs every test group against the service behind harness.
func RunTestSuite(
	harness *framework.TestHarness,
	filter framework.Filter,
	testLogger framework.TestLogger,
	config SuiteConfig,
) framework.Results {
	config = config.withDefaults()
	return framework.Run(filter, testLogger, config, func(c *framework.Context) {
		t := newTestScope(c, harness, config)

		t.Run("command submission", DoSubmissionTests)
		t.Run("callbacks", DoCallbackTests)
		t.Run("gzip", DoGzipTests)
		t.Run("paging", DoPagingTests)
	})
}
