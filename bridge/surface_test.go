package bridge

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/tetratelabs/wazero/api"
	"go.bytecodealliance.org/wit"
)

func TestCoreSignature(t *testing.T) {
	i32, i64, f32 := api.ValueTypeI32, api.ValueTypeI64, api.ValueTypeF32
	tests := []struct {
		name    string
		params  []api.ValueType
		results []api.ValueType
	}{
		{"free_world", []api.ValueType{i64}, nil},
		{"free_string", []api.ValueType{i32, i32, i32, i32}, nil},
		{"set_release_callback", []api.ValueType{i32}, []api.ValueType{i32}},
		// envelope results go through a return pointer
		{"compile_to_svg", []api.ValueType{i64, i32, i32, i32}, nil},
		{"compile_to_raster", []api.ValueType{i64, i32, i32, f32, i32}, nil},
		{"new_world", []api.ValueType{i64, i32, i32, i64, i32, i32, i32, i32, i32, i32}, nil},
		{"release_flattened_tree", []api.ValueType{i32, i32, i32, i32, i32, i32, i32, i32, i32, i32, i32, i32}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, ok := Lookup(tt.name)
			if !ok {
				t.Fatalf("%s not found", tt.name)
			}
			params, results := f.CoreSignature()
			if diff := cmp.Diff(tt.params, params); diff != "" {
				t.Errorf("params mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.results, results); diff != "" {
				t.Errorf("results mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCoreSignatureSpillsParams(t *testing.T) {
	var params []Param
	for i := 0; i < MaxFlatParams; i++ {
		params = append(params, Param{Name: "p", Type: wit.U64{}})
	}
	f := Function{Name: "wide", Params: append(params, Param{Name: "q", Type: wit.U8{}})}
	got, _ := f.CoreSignature()
	if diff := cmp.Diff([]api.ValueType{api.ValueTypeI32}, got); diff != "" {
		t.Errorf("params mismatch (-want +got):\n%s", diff)
	}
}

func TestFunctionString(t *testing.T) {
	f, _ := Lookup("compile_to_svg")
	if got, want := f.String(), "compile_to_svg(world: handle, from: s32, to: s32) -> envelope"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if _, ok := Lookup("compile_to_pdf"); ok {
		t.Error("unknown function found")
	}
	if n := len(Surface()); n != 15 {
		t.Errorf("surface has %d functions", n)
	}
}

func TestTypeString(t *testing.T) {
	tests := []struct {
		typ  wit.Type
		want string
	}{
		{wit.String{}, "string"},
		{&wit.TypeDef{Kind: &wit.List{Type: wit.U8{}}}, "list<u8>"},
		{&wit.TypeDef{Kind: &wit.Option{Type: HandleType}}, "option<handle>"},
		{&wit.TypeDef{Kind: &wit.Result{OK: wit.String{}, Err: wit.U32{}}}, "result<string, u32>"},
		{&wit.TypeDef{Kind: &wit.Record{Fields: []wit.Field{{Name: "a", Type: wit.Bool{}}}}}, "record { a: bool }"},
	}
	for _, tt := range tests {
		if got := TypeString(tt.typ); got != tt.want {
			t.Errorf("TypeString = %q, want %q", got, tt.want)
		}
	}
}

func TestFlattenResult(t *testing.T) {
	res := &wit.TypeDef{Kind: &wit.Result{OK: wit.F32{}, Err: wit.U64{}}}
	want := []api.ValueType{api.ValueTypeI32, api.ValueTypeI64}
	if diff := cmp.Diff(want, FlattenType(res)); diff != "" {
		t.Errorf("flatten mismatch (-want +got):\n%s", diff)
	}
}
