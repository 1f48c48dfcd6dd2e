//go:build darwin

package dlfcn

import (
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
)

// blockDescriptor and blockLiteral mirror the ABI layout of an Objective-C
// global block object.
type blockDescriptor struct {
	reserved  uintptr
	blockSize uintptr
}

type blockLiteral struct {
	isa        uintptr
	flags      int32
	reserved   int32
	invoke     uintptr
	descriptor *blockDescriptor
}

var (
	dummyBlockOnce sync.Once
	dummyDesc      blockDescriptor
	dummyBlock     blockLiteral
)

// DummyBlock returns the address of a static global block the controller can
// inspect to learn the host's block-object layout. The isa is the real
// _NSConcreteGlobalBlock so field offsets match what the runtime produces;
// invoke points at a harmless resolved function and is never meant to run.
func DummyBlock() uint64 {
	dummyBlockOnce.Do(func() {
		dummyDesc = blockDescriptor{blockSize: unsafe.Sizeof(dummyBlock)}
		dummyBlock = blockLiteral{
			flags:      1 << 28, // BLOCK_IS_GLOBAL
			descriptor: &dummyDesc,
		}
		if h, err := Open("/usr/lib/libSystem.B.dylib", int(purego.RTLD_GLOBAL|purego.RTLD_NOW)); err == nil {
			if isa, err := Sym(h, "_NSConcreteGlobalBlock"); err == nil {
				dummyBlock.isa = isa
			}
			if fn, err := Sym(h, "getpid"); err == nil {
				dummyBlock.invoke = fn
			}
		}
	})
	return uint64(uintptr(unsafe.Pointer(&dummyBlock)))
}
