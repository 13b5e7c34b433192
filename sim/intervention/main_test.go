package intervention

import (
	"os"
	"testing"

	"github.com/ihmeuw/vivarium-compass-sam/sim/internal/testutil"
)

func TestMain(m *testing.M) {
	testutil.QuietLogs()
	os.Exit(m.Run())
}
