//go:build !(linux && cgo)

package regio

// Sfence is a no-op on platforms without a cgo-backed fence. The driver is
// Linux/x86-64-only in production; this stub exists so the package builds
// under go vet and unit tests on other hosts.
func Sfence() {}

// Mfence is a no-op on platforms without a cgo-backed fence.
func Mfence() {}
