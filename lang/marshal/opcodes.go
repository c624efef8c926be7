package marshal

// opcode tags the kind of node starting at the current byte, for any byte
// at or above maxInlineInt. Integers below that threshold are varint-inlined
// values, not opcodes.
type opcode byte

const (
	// maxInlineInt is the first byte value that is always an opcode, never
	// the leading byte of an inlined small integer.
	maxInlineInt = 0xC8

	opLongInt      opcode = 0xC8 // 4 bytes big-endian
	opReal         opcode = 0xC9 // 8 bytes IEEE-754, little-endian on the wire
	opNil          opcode = 0xCA
	opFalse        opcode = 0xCB
	opTrue         opcode = 0xCC
	opCoroutine    opcode = 0xCD
	opReserved0xCE opcode = 0xCE // integer-kind prefix, unreachable at this layer
	opString       opcode = 0xCF
	opSymbol       opcode = 0xD0
	opKeyword      opcode = 0xD1
	opArray        opcode = 0xD2
	opTuple        opcode = 0xD3
	opTable        opcode = 0xD4
	opTableProto   opcode = 0xD5
	opStruct       opcode = 0xD6
	opBuffer       opcode = 0xD7
	opFunction     opcode = 0xD8
	opRegistry     opcode = 0xD9
	opOpaque       opcode = 0xDA
	opReference    opcode = 0xDB
	opFuncenvRef   opcode = 0xDC
	opFuncdefRef   opcode = 0xDD
)

func (op opcode) String() string {
	switch op {
	case opLongInt:
		return "long-integer"
	case opReal:
		return "real"
	case opNil:
		return "nil"
	case opFalse:
		return "false"
	case opTrue:
		return "true"
	case opCoroutine:
		return "coroutine"
	case opString:
		return "string"
	case opSymbol:
		return "symbol"
	case opKeyword:
		return "keyword"
	case opArray:
		return "array"
	case opTuple:
		return "tuple"
	case opTable:
		return "table"
	case opTableProto:
		return "table-with-proto"
	case opStruct:
		return "struct"
	case opBuffer:
		return "buffer"
	case opFunction:
		return "function"
	case opRegistry:
		return "registry"
	case opOpaque:
		return "opaque"
	case opReference:
		return "reference"
	case opFuncenvRef:
		return "funcenv-ref"
	case opFuncdefRef:
		return "funcdef-ref"
	default:
		return "unknown-opcode"
	}
}
