package wasmbin

import (
	"fmt"

	"github.com/gridkit/compute"
)

// Wasm section IDs used by the scanner.
const (
	sectionCustom byte = 0x00
	sectionExport byte = 0x07
)

// Export kinds as encoded in the export section.
const (
	ExportFunc   byte = 0x00
	ExportTable  byte = 0x01
	ExportMemory byte = 0x02
	ExportGlobal byte = 0x03
)

// PragmaSectionName is the custom section scripts carry their pragma
// pairs in.
const PragmaSectionName = "script.info"

// Export is one entry of a module's export section, in declaration
// order. Order matters: it defines the variable-slot and
// invokable-function numbering of a script.
type Export struct {
	Name  string
	Kind  byte
	Index uint32
}

// ParseExports returns the export section entries in declaration order,
// or nil if the binary has none. The binary is assumed to be
// well-formed wasm; truncated input yields a truncated list rather than
// a panic.
func ParseExports(wasmBytes []byte) []Export {
	start, end := findSection(wasmBytes, sectionExport)
	if start < 0 {
		return nil
	}

	pos := start
	count, n := DecodeULEB128(wasmBytes[pos:end])
	pos += n

	exports := make([]Export, 0, count)
	for i := uint32(0); i < count && pos < end; i++ {
		nameLen, n := DecodeULEB128(wasmBytes[pos:end])
		pos += n
		if pos+int(nameLen) > end {
			break
		}
		name := string(wasmBytes[pos : pos+int(nameLen)])
		pos += int(nameLen)
		if pos >= end {
			break
		}
		kind := wasmBytes[pos]
		pos++
		idx, n := DecodeULEB128(wasmBytes[pos:end])
		pos += n

		exports = append(exports, Export{Name: name, Kind: kind, Index: idx})
	}
	return exports
}

// CustomSection returns the payload of the named custom section, or nil
// if the binary does not carry one.
func CustomSection(wasmBytes []byte, name string) []byte {
	if len(wasmBytes) < 8 {
		return nil
	}

	pos := 8
	for pos < len(wasmBytes) {
		sectionID := wasmBytes[pos]
		pos++
		sectionSize, n := DecodeULEB128(wasmBytes[pos:])
		pos += n
		sectionEnd := pos + int(sectionSize)
		if sectionEnd > len(wasmBytes) {
			return nil
		}

		if sectionID == sectionCustom {
			nameLen, n := DecodeULEB128(wasmBytes[pos:sectionEnd])
			nameStart := pos + n
			nameEnd := nameStart + int(nameLen)
			if nameEnd <= sectionEnd && string(wasmBytes[nameStart:nameEnd]) == name {
				return wasmBytes[nameEnd:sectionEnd]
			}
		}
		pos = sectionEnd
	}
	return nil
}

// ParsePragmas decodes a pragma custom-section payload: a ULEB128 pair
// count, then a length-prefixed key and value per pair. The payload is
// guest-supplied and untrusted, so every length is checked.
func ParsePragmas(payload []byte) ([]compute.Pragma, error) {
	if len(payload) == 0 {
		return nil, nil
	}

	count, n := DecodeULEB128(payload)
	pos := n
	if count > uint32(len(payload)) {
		return nil, fmt.Errorf("pragma count %d exceeds payload size %d", count, len(payload))
	}

	pragmas := make([]compute.Pragma, 0, count)
	for i := uint32(0); i < count; i++ {
		key, next, err := readPragmaString(payload, pos)
		if err != nil {
			return nil, fmt.Errorf("pragma %d key: %w", i, err)
		}
		value, after, err := readPragmaString(payload, next)
		if err != nil {
			return nil, fmt.Errorf("pragma %d value: %w", i, err)
		}
		pragmas = append(pragmas, compute.Pragma{Key: key, Value: value})
		pos = after
	}
	return pragmas, nil
}

func readPragmaString(payload []byte, pos int) (string, int, error) {
	if pos >= len(payload) {
		return "", 0, fmt.Errorf("truncated at offset %d", pos)
	}
	length, n := DecodeULEB128(payload[pos:])
	pos += n
	end := pos + int(length)
	if end > len(payload) || end < pos {
		return "", 0, fmt.Errorf("length %d overruns payload", length)
	}
	return string(payload[pos:end]), end, nil
}

// findSection scans the section stream for the first section with the
// given non-custom ID and returns its payload bounds, or (-1, -1).
func findSection(wasmBytes []byte, id byte) (int, int) {
	if len(wasmBytes) < 8 {
		return -1, -1
	}

	pos := 8
	for pos < len(wasmBytes) {
		sectionID := wasmBytes[pos]
		pos++
		sectionSize, n := DecodeULEB128(wasmBytes[pos:])
		pos += n
		sectionEnd := pos + int(sectionSize)
		if sectionEnd > len(wasmBytes) {
			return -1, -1
		}
		if sectionID == id {
			return pos, sectionEnd
		}
		pos = sectionEnd
	}
	return -1, -1
}
