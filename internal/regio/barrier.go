//go:build linux && cgo

package regio

/*
#include <stdint.h>

// x86-64 store fence to ensure all prior stores are globally visible
// before any subsequent store reaches the bus.
static inline void sfence_impl(void) {
    __asm__ __volatile__("sfence" ::: "memory");
}

// x86-64 full memory fence.
static inline void mfence_impl(void) {
    __asm__ __volatile__("mfence" ::: "memory");
}
*/
import "C"

// Sfence issues a store fence. Used before publishing a ring head or tail
// pointer, to guarantee the descriptor writes below it are visible to the
// NIC before the pointer update is.
func Sfence() {
	C.sfence_impl()
}

// Mfence issues a full memory fence.
func Mfence() {
	C.mfence_impl()
}
