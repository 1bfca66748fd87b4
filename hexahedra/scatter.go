package hexahedra

import (
	"math"
	"sync/atomic"
	"unsafe"
)

// atomicAddFloat64 adds val into *addr with a compare and swap loop on
// the float's bit pattern. Neighboring cells reference overlapping
// global dofs, so during an atomic mode application many workers hit
// the same address; a plain read modify write here would lose updates.
func atomicAddFloat64(addr *float64, val float64) {
	bits := (*uint64)(unsafe.Pointer(addr))
	for {
		old := atomic.LoadUint64(bits)
		upd := math.Float64bits(math.Float64frombits(old) + val)
		if atomic.CompareAndSwapUint64(bits, old, upd) {
			return
		}
	}
}
