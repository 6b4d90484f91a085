package errors

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestThrowCapturesFrame(t *testing.T) {
	exc := Throw(IllegalArgument, "library handle is zero", nil)

	if exc.Kind != IllegalArgument {
		t.Fatalf("Kind = %v", exc.Kind)
	}
	if len(exc.Trace) != 1 {
		t.Fatalf("trace length = %d, want 1", len(exc.Trace))
	}
	f := exc.Trace[0]
	if f.MethodName == nil || *f.MethodName != "TestThrowCapturesFrame" {
		t.Errorf("method = %v, want TestThrowCapturesFrame", f.MethodName)
	}
	if f.FileName == nil || !strings.HasSuffix(*f.FileName, "exception_test.go") {
		t.Errorf("file = %v", f.FileName)
	}
	if f.LineNumber == 0 {
		t.Error("line number not captured")
	}
	if f.ClassLoaderName == nil || *f.ClassLoaderName != "docbridge" {
		t.Errorf("class loader = %v", f.ClassLoaderName)
	}
}

func TestAddFrame(t *testing.T) {
	exc := Throw(IllegalState, "", nil)
	exc = exc.AddFrame()
	if len(exc.Trace) != 2 {
		t.Fatalf("trace length = %d, want 2", len(exc.Trace))
	}
	if exc.Message != nil {
		t.Errorf("empty message should be absent, got %q", *exc.Message)
	}

	var nilExc *Exception
	if nilExc.AddFrame() != nil {
		t.Error("AddFrame on nil should return nil")
	}
}

func TestFromError(t *testing.T) {
	root := errors.New("disk unplugged")
	err := Wrap(PhaseBoundary, KindOwnership, root, "unwrap")

	exc := FromError(Internal, err)
	if exc.Kind != OwnershipViolation {
		t.Errorf("Kind = %v, want ownership", exc.Kind)
	}
	if exc.Cause == nil || exc.Cause.Message == nil || *exc.Cause.Message != "disk unplugged" {
		t.Fatalf("cause chain not converted: %+v", exc.Cause)
	}
	if !errors.Is(exc, &Exception{Kind: OwnershipViolation}) {
		t.Error("errors.Is should match by kind")
	}

	if FromError(Internal, nil) != nil {
		t.Error("FromError(nil) should be nil")
	}

	again := FromError(IllegalArgument, exc)
	if again != exc {
		t.Error("existing exception should be reused")
	}
}

func TestFromPanic(t *testing.T) {
	var exc *Exception
	func() {
		defer func() {
			exc = FromPanic(recover())
		}()
		panic("index out of range")
	}()

	if exc.Kind != Internal || exc.Message == nil || *exc.Message != "index out of range" {
		t.Errorf("got %+v", exc)
	}
}

func TestExceptionJSON(t *testing.T) {
	cause := Throw(IllegalState, "world freed", nil)
	exc := Throw(IllegalArgument, "bad now config", cause)

	data, err := json.Marshal(exc)
	if err != nil {
		t.Fatal(err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	if raw["class"] != "java.lang.IllegalArgumentException" {
		t.Errorf("class = %v", raw["class"])
	}
	if raw["message"] != "bad now config" {
		t.Errorf("message = %v", raw["message"])
	}
	if _, ok := raw["suppressed"].([]any); !ok {
		t.Errorf("suppressed should be an array, got %T", raw["suppressed"])
	}
	frames, _ := raw["stack_trace"].([]any)
	if len(frames) != 1 {
		t.Fatalf("stack_trace = %v", raw["stack_trace"])
	}
	frame := frames[0].(map[string]any)
	for _, key := range []string{"class_loader_name", "module_name", "module_version", "declaring_class", "method_name", "file_name", "line_number"} {
		if _, ok := frame[key]; !ok {
			t.Errorf("frame missing %q", key)
		}
	}

	var back Exception
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if back.Kind != IllegalArgument || back.Cause == nil || back.Cause.Kind != IllegalState {
		t.Errorf("decoded = %+v", back)
	}
}

func TestSplitFuncName(t *testing.T) {
	tests := []struct {
		in                    string
		module, class, method string
	}{
		{"github.com/wippyai/docbridge/bridge.(*Bridge).NewWorld", "github.com/wippyai/docbridge/bridge", "bridge.Bridge", "NewWorld"},
		{"github.com/wippyai/docbridge/world.New", "github.com/wippyai/docbridge/world", "world", "New"},
		{"main.main", "main", "main", "main"},
		{"nodots", "", "", "nodots"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			m, c, fn := splitFuncName(tt.in)
			if m != tt.module || c != tt.class || fn != tt.method {
				t.Errorf("splitFuncName(%q) = %q, %q, %q", tt.in, m, c, fn)
			}
		})
	}
}
