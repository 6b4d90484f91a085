package bridge

import (
	"fmt"
	"strings"

	"github.com/tetratelabs/wazero/api"
	"go.bytecodealliance.org/wit"
)

// Canonical ABI flattening limits.
const (
	MaxFlatParams  = 16
	MaxFlatResults = 1
)

// Param is a named parameter of a boundary function.
type Param struct {
	Name string
	Type wit.Type
}

// Function describes one boundary entry point. A nil Result means the
// function returns nothing.
type Function struct {
	Name   string
	Params []Param
	Result wit.Type
	Doc    string
}

func named(name string, kind wit.TypeDefKind) *wit.TypeDef {
	return &wit.TypeDef{Name: &name, Kind: kind}
}

// Shapes crossing the boundary.
var (
	BufferType = named("buffer", &wit.Record{Fields: []wit.Field{
		{Name: "ptr", Type: wit.U32{}},
		{Name: "len", Type: wit.U32{}},
		{Name: "cap", Type: wit.U32{}},
		{Name: "gen", Type: wit.U32{}},
	}})
	EnvelopeType = named("envelope", &wit.Record{Fields: []wit.Field{
		{Name: "ticket", Type: wit.S64{}},
		{Name: "value", Type: BufferType},
	}})
	ExceptedType = named("excepted", &wit.Record{Fields: []wit.Field{
		{Name: "comment", Type: BufferType},
		{Name: "handle", Type: wit.S64{}},
	}})
	FlattenedTreeType = named("flattened-tree", &wit.Record{Fields: []wit.Field{
		{Name: "marks", Type: BufferType},
		{Name: "errors", Type: BufferType},
		{Name: "errors-starts", Type: BufferType},
	}})
	// CallbackType is a host function reference.
	CallbackType = named("callback", wit.U32{})
	// HandleType is a world or library handle.
	HandleType = named("handle", wit.S64{})
)

var surface = []Function{
	{Name: "new_world", Result: ExceptedType, Doc: "create a world from a library, host callbacks and a clock",
		Params: []Param{{"library", HandleType}, {"main_callback", CallbackType}, {"file_callback", CallbackType}, {"now", EnvelopeType}, {"auto_load_registry", wit.S32{}}}},
	{Name: "reset_world", Params: []Param{{"world", HandleType}}, Doc: "start a new compilation pass"},
	{Name: "free_world", Params: []Param{{"world", HandleType}}, Doc: "release a world"},
	{Name: "free_library", Params: []Param{{"library", HandleType}}, Doc: "release a library"},
	{Name: "free_string", Params: []Param{{"ptr", BufferType}}, Doc: "release a buffer returned by the bridge"},
	{Name: "set_release_callback", Params: []Param{{"fn", CallbackType}}, Result: wit.Bool{}, Doc: "install the ticket release callback once"},
	{Name: "compile_to_html", Params: []Param{{"world", HandleType}}, Result: EnvelopeType, Doc: "compile to html"},
	{Name: "compile_to_svg", Params: []Param{{"world", HandleType}, {"from", wit.S32{}}, {"to", wit.S32{}}}, Result: EnvelopeType, Doc: "compile and render pages as svg"},
	{Name: "compile_to_raster", Params: []Param{{"world", HandleType}, {"from", wit.S32{}}, {"to", wit.S32{}}, {"ppi", wit.F32{}}}, Result: EnvelopeType, Doc: "compile and render pages as png"},
	{Name: "query", Params: []Param{{"world", HandleType}, {"selector", BufferType}, {"format", wit.S32{}}}, Result: EnvelopeType, Doc: "select elements of the compiled document"},
	{Name: "format_source", Params: []Param{{"source", BufferType}, {"column", wit.S32{}}, {"tab", wit.S32{}}}, Result: BufferType, Doc: "format source text"},
	{Name: "parse_syntax", Params: []Param{{"source", BufferType}, {"mode", wit.S32{}}}, Result: FlattenedTreeType, Doc: "parse and flatten a syntax tree"},
	{Name: "release_flattened_tree", Params: []Param{{"tree", FlattenedTreeType}}, Doc: "release a flattened tree"},
	{Name: "detached_eval", Params: []Param{{"world", HandleType}, {"source", BufferType}}, Result: EnvelopeType, Doc: "evaluate code against a world"},
	{Name: "create_stdlib", Params: []Param{{"features", wit.S32{}}, {"inputs", BufferType}}, Result: ExceptedType, Doc: "build a library"},
}

// Surface lists the boundary functions in declaration order.
func Surface() []Function {
	out := make([]Function, len(surface))
	copy(out, surface)
	return out
}

// Lookup finds a boundary function by name.
func Lookup(name string) (Function, bool) {
	for _, f := range surface {
		if f.Name == name {
			return f, true
		}
	}
	return Function{}, false
}

func (f Function) String() string {
	params := make([]string, len(f.Params))
	for i, p := range f.Params {
		params[i] = p.Name + ": " + TypeString(p.Type)
	}
	s := f.Name + "(" + strings.Join(params, ", ") + ")"
	if f.Result != nil {
		s += " -> " + TypeString(f.Result)
	}
	return s
}

// CoreSignature flattens f to core wasm value types. Parameters beyond
// MaxFlatParams are passed by pointer; results beyond MaxFlatResults are
// written through a trailing return pointer.
func (f Function) CoreSignature() (params, results []api.ValueType) {
	for _, p := range f.Params {
		params = append(params, FlattenType(p.Type)...)
	}
	if f.Result != nil {
		results = FlattenType(f.Result)
	}
	if len(params) > MaxFlatParams {
		params = []api.ValueType{api.ValueTypeI32}
	}
	if len(results) > MaxFlatResults {
		params = append(params, api.ValueTypeI32)
		results = nil
	}
	return params, results
}

// TypeString renders t in WIT syntax. Named definitions render as their
// name.
func TypeString(t wit.Type) string {
	switch v := t.(type) {
	case nil:
		return "_"
	case wit.Bool:
		return "bool"
	case wit.U8:
		return "u8"
	case wit.S8:
		return "s8"
	case wit.U16:
		return "u16"
	case wit.S16:
		return "s16"
	case wit.U32:
		return "u32"
	case wit.S32:
		return "s32"
	case wit.U64:
		return "u64"
	case wit.S64:
		return "s64"
	case wit.F32:
		return "f32"
	case wit.F64:
		return "f64"
	case wit.Char:
		return "char"
	case wit.String:
		return "string"
	case *wit.TypeDef:
		if v.Name != nil {
			return *v.Name
		}
		switch k := v.Kind.(type) {
		case *wit.List:
			return "list<" + TypeString(k.Type) + ">"
		case *wit.Option:
			return "option<" + TypeString(k.Type) + ">"
		case *wit.Result:
			return "result<" + TypeString(k.OK) + ", " + TypeString(k.Err) + ">"
		case *wit.Record:
			fields := make([]string, len(k.Fields))
			for i, f := range k.Fields {
				fields[i] = f.Name + ": " + TypeString(f.Type)
			}
			return "record { " + strings.Join(fields, ", ") + " }"
		}
		return "typedef"
	}
	return fmt.Sprintf("%T", t)
}

// FlattenType flattens a WIT type to core wasm types.
func FlattenType(t wit.Type) []api.ValueType {
	switch v := t.(type) {
	case nil:
		return nil
	case wit.Bool, wit.U8, wit.U16, wit.U32, wit.S8, wit.S16, wit.S32, wit.Char:
		return []api.ValueType{api.ValueTypeI32}
	case wit.U64, wit.S64:
		return []api.ValueType{api.ValueTypeI64}
	case wit.F32:
		return []api.ValueType{api.ValueTypeF32}
	case wit.F64:
		return []api.ValueType{api.ValueTypeF64}
	case wit.String:
		return []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}
	case *wit.TypeDef:
		return flattenTypeDef(v)
	}
	return []api.ValueType{api.ValueTypeI32}
}

func flattenTypeDef(td *wit.TypeDef) []api.ValueType {
	if td == nil || td.Kind == nil {
		return []api.ValueType{api.ValueTypeI32}
	}
	switch kind := td.Kind.(type) {
	case *wit.Record:
		var flat []api.ValueType
		for _, field := range kind.Fields {
			flat = append(flat, FlattenType(field.Type)...)
		}
		return flat
	case *wit.List:
		return []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}
	case *wit.Option:
		return append([]api.ValueType{api.ValueTypeI32}, FlattenType(kind.Type)...)
	case *wit.Result:
		return append([]api.ValueType{api.ValueTypeI32}, join(FlattenType(kind.OK), FlattenType(kind.Err))...)
	case wit.Type:
		return FlattenType(kind)
	}
	return []api.ValueType{api.ValueTypeI32}
}

// join unions two flattened payloads slot by slot.
func join(a, b []api.ValueType) []api.ValueType {
	out := append([]api.ValueType(nil), a...)
	for i, t := range b {
		if i >= len(out) {
			out = append(out, t)
			continue
		}
		if out[i] == t {
			continue
		}
		if (out[i] == api.ValueTypeI32 && t == api.ValueTypeF32) || (out[i] == api.ValueTypeF32 && t == api.ValueTypeI32) {
			out[i] = api.ValueTypeI32
			continue
		}
		out[i] = api.ValueTypeI64
	}
	return out
}
