package errors

import (
	"encoding/json"
	"fmt"
	"runtime"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// ExceptionKind is the closed set of unexpected failures reported to the host.
type ExceptionKind uint8

const (
	Internal ExceptionKind = iota
	IllegalArgument
	IllegalState
	SerializationFailure
	OwnershipViolation
)

// className is only consulted when an Exception is serialized for the host.
var className = [...]string{
	Internal:             "java.lang.RuntimeException",
	IllegalArgument:      "java.lang.IllegalArgumentException",
	IllegalState:         "java.lang.IllegalStateException",
	SerializationFailure: "java.io.UncheckedIOException",
	OwnershipViolation:   "java.lang.IllegalMonitorStateException",
}

var kindName = [...]string{
	Internal:             "internal",
	IllegalArgument:      "illegal argument",
	IllegalState:         "illegal state",
	SerializationFailure: "serialization",
	OwnershipViolation:   "ownership",
}

func (k ExceptionKind) String() string {
	if int(k) < len(kindName) {
		return kindName[k]
	}
	return fmt.Sprintf("exception(%d)", uint8(k))
}

// ClassName is the host-facing name for the kind.
func (k ExceptionKind) ClassName() string {
	if int(k) < len(className) {
		return className[k]
	}
	return className[Internal]
}

// StackFrame is one captured call site.
type StackFrame struct {
	ClassLoaderName *string `json:"class_loader_name" msgpack:"class_loader_name"`
	ModuleName      *string `json:"module_name" msgpack:"module_name"`
	ModuleVersion   *string `json:"module_version" msgpack:"module_version"`
	DeclaringClass  *string `json:"declaring_class" msgpack:"declaring_class"`
	MethodName      *string `json:"method_name" msgpack:"method_name"`
	FileName        *string `json:"file_name" msgpack:"file_name"`
	LineNumber      uint32  `json:"line_number" msgpack:"line_number"`
}

// Exception is the boundary-safe record of an unexpected failure.
type Exception struct {
	Kind       ExceptionKind
	Message    *string
	Cause      *Exception
	Trace      []StackFrame
	Suppressed []*Exception
}

const loaderName = "docbridge"

// Throw builds an Exception with the caller's frame as its first trace entry.
func Throw(kind ExceptionKind, message string, cause *Exception) *Exception {
	e := &Exception{Kind: kind, Cause: cause}
	if message != "" {
		e.Message = &message
	}
	e.Trace = append(e.Trace, frame(2))
	return e
}

// AddFrame appends the caller's frame and returns e, so it can be used as
// `return nil, exc.AddFrame()` while propagating.
func (e *Exception) AddFrame() *Exception {
	if e == nil {
		return nil
	}
	e.Trace = append(e.Trace, frame(2))
	return e
}

// Suppress records another exception that occurred while handling e.
func (e *Exception) Suppress(other *Exception) {
	if other != nil {
		e.Suppressed = append(e.Suppressed, other)
	}
}

// FromError converts an error chain into an Exception cause chain. An
// *Exception anywhere in the chain is reused as is.
func FromError(kind ExceptionKind, err error) *Exception {
	if err == nil {
		return nil
	}
	if exc, ok := err.(*Exception); ok {
		return exc.AddFrame()
	}

	var cause *Exception
	if next := unwrapOne(err); next != nil {
		cause = FromError(kind, next)
	}

	msg := err.Error()
	if e, ok := err.(*Error); ok {
		kind = kindFor(e.Kind, kind)
	}
	exc := &Exception{Kind: kind, Message: &msg, Cause: cause}
	exc.Trace = append(exc.Trace, frame(2))
	return exc
}

// FromPanic converts a recovered value into an Exception.
func FromPanic(recovered any) *Exception {
	if err, ok := recovered.(error); ok {
		exc := FromError(Internal, err)
		exc.Trace = append(exc.Trace, frame(2))
		return exc
	}
	msg := fmt.Sprint(recovered)
	exc := &Exception{Kind: Internal, Message: &msg}
	exc.Trace = append(exc.Trace, frame(2))
	return exc
}

func kindFor(k Kind, fallback ExceptionKind) ExceptionKind {
	switch k {
	case KindOwnership, KindInvalidHandle:
		return OwnershipViolation
	case KindSerialization, KindInvalidUTF8:
		return SerializationFailure
	case KindInvalidInput, KindOutOfBounds, KindOverflow, KindNilPointer:
		return IllegalArgument
	case KindNotInitialized:
		return IllegalState
	}
	return fallback
}

func unwrapOne(err error) error {
	if u, ok := err.(interface{ Unwrap() error }); ok {
		return u.Unwrap()
	}
	return nil
}

// Error implements the error interface
func (e *Exception) Error() string {
	if e.Message == nil {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + *e.Message
}

// Unwrap returns the cause, or nil
func (e *Exception) Unwrap() error {
	if e.Cause == nil {
		return nil
	}
	return e.Cause
}

// Is reports whether target is an Exception of the same kind
func (e *Exception) Is(target error) bool {
	if t, ok := target.(*Exception); ok {
		return e.Kind == t.Kind
	}
	return false
}

type exceptionWire struct {
	Class      string       `json:"class"`
	Message    *string      `json:"message"`
	Cause      *Exception   `json:"cause"`
	StackTrace []StackFrame `json:"stack_trace"`
	Suppressed []*Exception `json:"suppressed"`
}

func (e *Exception) wire() exceptionWire {
	w := exceptionWire{
		Class:      e.Kind.ClassName(),
		Message:    e.Message,
		Cause:      e.Cause,
		StackTrace: e.Trace,
		Suppressed: e.Suppressed,
	}
	if w.StackTrace == nil {
		w.StackTrace = []StackFrame{}
	}
	if w.Suppressed == nil {
		w.Suppressed = []*Exception{}
	}
	return w
}

func (e *Exception) fromWire(w exceptionWire) {
	e.Kind = Internal
	for k, name := range className {
		if name == w.Class {
			e.Kind = ExceptionKind(k)
			break
		}
	}
	e.Message = w.Message
	e.Cause = w.Cause
	e.Trace = w.StackTrace
	e.Suppressed = w.Suppressed
}

// MarshalJSON emits the host-facing shape with a class name.
func (e *Exception) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.wire())
}

// UnmarshalJSON accepts the host-facing shape. Unknown classes decode as Internal.
func (e *Exception) UnmarshalJSON(data []byte) error {
	var w exceptionWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	e.fromWire(w)
	return nil
}

// EncodeMsgpack implements msgpack.CustomEncoder with the same shape as JSON.
func (e *Exception) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.Encode(e.wire())
}

// DecodeMsgpack implements msgpack.CustomDecoder.
func (e *Exception) DecodeMsgpack(dec *msgpack.Decoder) error {
	var w exceptionWire
	if err := dec.Decode(&w); err != nil {
		return err
	}
	e.fromWire(w)
	return nil
}

func frame(skip int) StackFrame {
	loader := loaderName
	f := StackFrame{ClassLoaderName: &loader}

	pc, file, line, ok := runtime.Caller(skip)
	if !ok {
		return f
	}
	if line > 0 {
		f.LineNumber = uint32(line)
	}
	f.FileName = &file

	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return f
	}
	module, class, method := splitFuncName(fn.Name())
	if module != "" {
		f.ModuleName = &module
	}
	if class != "" {
		f.DeclaringClass = &class
	}
	f.MethodName = &method
	return f
}

// splitFuncName splits "example.com/mod/pkg.(*T).M" into the import path,
// the package-qualified receiver and the method name.
func splitFuncName(name string) (module, class, method string) {
	slash := strings.LastIndexByte(name, '/')
	dot := strings.IndexByte(name[slash+1:], '.')
	if dot < 0 {
		return "", "", name
	}
	dot += slash + 1
	module = name[:dot]
	rest := name[dot+1:]

	pkg := module[strings.LastIndexByte(module, '/')+1:]
	if i := strings.LastIndexByte(rest, '.'); i >= 0 {
		recv := strings.Trim(rest[:i], "(*)")
		return module, pkg + "." + recv, rest[i+1:]
	}
	return module, pkg, rest
}
