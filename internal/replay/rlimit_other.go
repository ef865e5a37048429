//go:build !linux && !darwin

package replay

// LimitMemory is a no-op where address-space limits are unavailable.
func LimitMemory(mb int) error { return nil }
