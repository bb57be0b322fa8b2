package wasmbin

import (
	"encoding/binary"
	"math"
)

// Asm accumulates raw instruction bytes for a function body. Methods
// append one instruction and return the extended slice, so bodies chain:
//
//	wasmbin.Asm{}.GlobalGet(0).I32Const(1).I32Add().GlobalSet(0)
//
// The builder appends the terminating end opcode itself.
type Asm []byte

func (a Asm) op(code byte, imm ...[]byte) Asm {
	a = append(a, code)
	for _, b := range imm {
		a = append(a, b...)
	}
	return a
}

func (a Asm) Unreachable() Asm { return a.op(0x00) }
func (a Asm) Nop() Asm         { return a.op(0x01) }

// Block opens a void block; close with End.
func (a Asm) Block() Asm { return a.op(0x02, []byte{0x40}) }

// Loop opens a void loop; close with End. Br targeting the loop jumps
// back to its start.
func (a Asm) Loop() Asm { return a.op(0x03, []byte{0x40}) }

func (a Asm) End() Asm              { return a.op(0x0b) }
func (a Asm) Br(depth uint32) Asm   { return a.op(0x0c, EncodeULEB128(depth)) }
func (a Asm) BrIf(depth uint32) Asm { return a.op(0x0d, EncodeULEB128(depth)) }
func (a Asm) Return() Asm           { return a.op(0x0f) }
func (a Asm) Call(fn uint32) Asm    { return a.op(0x10, EncodeULEB128(fn)) }
func (a Asm) Drop() Asm             { return a.op(0x1a) }

func (a Asm) LocalGet(i uint32) Asm  { return a.op(0x20, EncodeULEB128(i)) }
func (a Asm) LocalSet(i uint32) Asm  { return a.op(0x21, EncodeULEB128(i)) }
func (a Asm) LocalTee(i uint32) Asm  { return a.op(0x22, EncodeULEB128(i)) }
func (a Asm) GlobalGet(i uint32) Asm { return a.op(0x23, EncodeULEB128(i)) }
func (a Asm) GlobalSet(i uint32) Asm { return a.op(0x24, EncodeULEB128(i)) }

func (a Asm) I32Load(offset uint32) Asm   { return a.op(0x28, []byte{0x02}, EncodeULEB128(offset)) }
func (a Asm) F32Load(offset uint32) Asm   { return a.op(0x2a, []byte{0x02}, EncodeULEB128(offset)) }
func (a Asm) I32Load8U(offset uint32) Asm { return a.op(0x2d, []byte{0x00}, EncodeULEB128(offset)) }
func (a Asm) I32Store(offset uint32) Asm  { return a.op(0x36, []byte{0x02}, EncodeULEB128(offset)) }
func (a Asm) F32Store(offset uint32) Asm  { return a.op(0x38, []byte{0x02}, EncodeULEB128(offset)) }
func (a Asm) I32Store8(offset uint32) Asm { return a.op(0x3a, []byte{0x00}, EncodeULEB128(offset)) }

func (a Asm) I32Const(v int32) Asm { return a.op(0x41, EncodeSLEB128(v)) }
func (a Asm) I64Const(v int64) Asm { return a.op(0x42, EncodeSLEB128(v)) }

func (a Asm) F32Const(v float32) Asm {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], math.Float32bits(v))
	return a.op(0x43, buf[:])
}

func (a Asm) I32Eqz() Asm { return a.op(0x45) }
func (a Asm) I32Eq() Asm  { return a.op(0x46) }
func (a Asm) I32LtU() Asm { return a.op(0x49) }
func (a Asm) I32GeU() Asm { return a.op(0x4f) }

func (a Asm) I32Add() Asm { return a.op(0x6a) }
func (a Asm) I32Sub() Asm { return a.op(0x6b) }
func (a Asm) I32Mul() Asm { return a.op(0x6c) }
func (a Asm) I32And() Asm { return a.op(0x71) }
func (a Asm) I32Shl() Asm { return a.op(0x74) }

func (a Asm) F32Add() Asm { return a.op(0x92) }
func (a Asm) F32Mul() Asm { return a.op(0x94) }

func (a Asm) F32ConvertI32U() Asm { return a.op(0xb3) }
