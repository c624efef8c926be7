package machine

import (
	"fmt"
	"sync"
)

// An OpaqueContext is passed to an OpaqueDescriptor's Marshal and Unmarshal
// callbacks. It exposes the low-level primitives the lang/marshal codec uses
// internally, so that a host-defined type can embed its own fields in the
// same compact wire format, including nested ordinary values.
type OpaqueContext struct {
	// PushVarint appends i encoded as a variable-length integer.
	PushVarint func(i int32)
	// PushByte appends a single raw byte.
	PushByte func(b byte)
	// PushBytes appends raw bytes verbatim (no length prefix).
	PushBytes func(p []byte)
	// PushValue marshals an ordinary value as a nested node.
	PushValue func(v Value) error

	// ReadVarint decodes a variable-length integer.
	ReadVarint func() (int32, error)
	// ReadByte reads a single raw byte.
	ReadByte func() (byte, error)
	// ReadBytes reads n raw bytes verbatim.
	ReadBytes func(n int) ([]byte, error)
	// ReadValue decodes a nested ordinary value.
	ReadValue func() (Value, error)

	// Depth is a snapshot of the codec's recursion depth when the callback is
	// invoked; PushValue/ReadValue maintain the recursion guard themselves.
	Depth int
}

// An OpaqueDescriptor describes a host-defined value type. A type with no
// Marshal/Unmarshal pair can still exist at runtime, but marshaling a value
// of that type fails with "unregistered opaque type".
type OpaqueDescriptor struct {
	Name Keyword
	Size int

	Marshal   func(ctx *OpaqueContext, v *Opaque) error
	Unmarshal func(ctx *OpaqueContext) (*Opaque, error)
}

// An Opaque is a host-defined value manipulated by the machine only through
// its descriptor; the core never inspects Data directly.
type Opaque struct {
	Descriptor *OpaqueDescriptor
	Data       []byte
}

var _ Value = (*Opaque)(nil)

func (o *Opaque) String() string { return fmt.Sprintf("%s(%p)", o.Descriptor.Name, o) }
func (o *Opaque) Type() string   { return string(o.Descriptor.Name) }

var (
	opaqueRegistryMu sync.RWMutex
	opaqueRegistry   = map[Keyword]*OpaqueDescriptor{}
)

// RegisterOpaqueType installs desc in the process-wide opaque type registry,
// keyed by its name. A later registration of the same name replaces the
// earlier one.
func RegisterOpaqueType(desc *OpaqueDescriptor) {
	opaqueRegistryMu.Lock()
	defer opaqueRegistryMu.Unlock()
	opaqueRegistry[desc.Name] = desc
}

// LookupOpaqueType returns the descriptor registered under name, or nil if
// none is registered.
func LookupOpaqueType(name Keyword) *OpaqueDescriptor {
	opaqueRegistryMu.RLock()
	defer opaqueRegistryMu.RUnlock()
	return opaqueRegistry[name]
}
