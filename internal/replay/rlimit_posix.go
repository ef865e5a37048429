//go:build linux || darwin

package replay

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// LimitMemory caps the address space of the process at mb megabytes so a
// runaway kernel fails allocation instead of taking the machine down. Zero
// leaves the limit alone.
func LimitMemory(mb int) error {
	if mb <= 0 {
		return nil
	}
	limit := uint64(mb) << 20
	var cur unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_AS, &cur); err != nil {
		return fmt.Errorf("getrlimit: %w", err)
	}
	if cur.Max != unix.RLIM_INFINITY && limit > cur.Max {
		limit = cur.Max
	}
	if err := unix.Setrlimit(unix.RLIMIT_AS, &unix.Rlimit{Cur: limit, Max: cur.Max}); err != nil {
		return fmt.Errorf("setrlimit: %w", err)
	}
	return nil
}
