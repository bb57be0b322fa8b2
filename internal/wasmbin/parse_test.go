package wasmbin

import (
	"testing"

	"github.com/tetratelabs/wazero/api"

	"github.com/gridkit/compute"
)

func TestParseExportsOrder(t *testing.T) {
	wasm := NewScriptModule().
		Global("gCount", 0).
		Global("gScale", 7).
		Func("root", nil, []api.ValueType{api.ValueTypeI32}, nil,
			Asm{}.I32Const(0)).
		Build()

	exports := ParseExports(wasm)
	if len(exports) != 4 {
		t.Fatalf("got %d exports, want 4", len(exports))
	}
	want := []struct {
		name string
		kind byte
	}{
		{"gCount", ExportGlobal},
		{"gScale", ExportGlobal},
		{"root", ExportFunc},
		{"memory", ExportMemory},
	}
	for i, w := range want {
		if exports[i].Name != w.name || exports[i].Kind != w.kind {
			t.Errorf("export[%d] = %q kind %d, want %q kind %d",
				i, exports[i].Name, exports[i].Kind, w.name, w.kind)
		}
	}
	if exports[0].Index != 0 || exports[1].Index != 1 {
		t.Error("global export indices must follow declaration order")
	}
}

func TestParseExportsEmptyModule(t *testing.T) {
	exports := ParseExports(NewScriptModule().Build())
	if len(exports) != 1 || exports[0].Name != "memory" {
		t.Fatalf("bare module should export only memory, got %v", exports)
	}
}

func TestParseExportsGarbage(t *testing.T) {
	if got := ParseExports([]byte{0x00, 0x61, 0x73}); got != nil {
		t.Errorf("short input should yield nil, got %v", got)
	}
	if got := ParseExports(nil); got != nil {
		t.Errorf("nil input should yield nil, got %v", got)
	}
}

func TestCustomSectionLookup(t *testing.T) {
	wasm := NewScriptModule().
		RawCustomSection("notes", []byte("hello")).
		Pragma("version", "1").
		Build()

	if got := CustomSection(wasm, "notes"); string(got) != "hello" {
		t.Errorf("notes payload = %q, want %q", got, "hello")
	}
	if got := CustomSection(wasm, PragmaSectionName); got == nil {
		t.Error("pragma section missing")
	}
	if got := CustomSection(wasm, "absent"); got != nil {
		t.Errorf("missing section should yield nil, got %v", got)
	}
}

func TestParsePragmasRoundTrip(t *testing.T) {
	wasm := NewScriptModule().
		Pragma("version", "1").
		Pragma("stateVertex", "parent").
		Pragma("pack", "").
		Build()

	payload := CustomSection(wasm, PragmaSectionName)
	if payload == nil {
		t.Fatal("pragma section missing")
	}
	pragmas, err := ParsePragmas(payload)
	if err != nil {
		t.Fatalf("ParsePragmas: %v", err)
	}
	want := []compute.Pragma{
		{Key: "version", Value: "1"},
		{Key: "stateVertex", Value: "parent"},
		{Key: "pack", Value: ""},
	}
	if len(pragmas) != len(want) {
		t.Fatalf("got %d pragmas, want %d", len(pragmas), len(want))
	}
	for i, w := range want {
		if pragmas[i] != w {
			t.Errorf("pragma[%d] = %+v, want %+v", i, pragmas[i], w)
		}
	}
}

func TestParsePragmasEmptyPayload(t *testing.T) {
	pragmas, err := ParsePragmas(nil)
	if err != nil || len(pragmas) != 0 {
		t.Errorf("empty payload should parse to zero pragmas, got %v, %v", pragmas, err)
	}
}

func TestParsePragmasCorrupt(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
	}{
		{"absurd count", []byte{0xFF, 0xFF, 0xFF, 0xFF, 0x0F}},
		{"count without entries", []byte{0x02}},
		{"key length overrun", []byte{0x01, 0x10, 'k'}},
		{"missing value", []byte{0x01, 0x01, 'k'}},
		{"value length overrun", []byte{0x01, 0x01, 'k', 0x7F, 'v'}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParsePragmas(tt.payload); err == nil {
				t.Errorf("expected error for %v", tt.payload)
			}
		})
	}
}

func TestParsePragmasTruncatedEverywhere(t *testing.T) {
	wasm := NewScriptModule().
		Pragma("version", "1").
		Pragma("stateStore", "default").
		Build()
	payload := CustomSection(wasm, PragmaSectionName)
	for cut := 1; cut < len(payload); cut++ {
		if _, err := ParsePragmas(payload[:cut]); err == nil {
			t.Errorf("truncation at %d bytes parsed cleanly", cut)
		}
	}
}
