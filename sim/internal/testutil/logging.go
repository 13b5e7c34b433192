package testutil

import (
	"os"

	"github.com/sirupsen/logrus"
)

// QuietLogs suppresses per-run simulation logging during tests to keep CI
// output small. Set DEBUG_TESTS=1 to see full logs. Call from TestMain.
func QuietLogs() {
	if os.Getenv("DEBUG_TESTS") == "" {
		logrus.SetLevel(logrus.WarnLevel)
	}
}
