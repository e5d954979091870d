package scheduler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCheckDiskSpaceOnLikelyHealthyPath(t *testing.T) {
	// A temp dir on this machine's test runner is assumed to have more
	// than 5% free; this exercises the happy path without faking gopsutil.
	require.NoError(t, CheckDiskSpace(t.TempDir()))
}
