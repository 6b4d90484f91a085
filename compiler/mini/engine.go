package mini

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/docbridge/compiler"
	"github.com/wippyai/docbridge/diag"
	"github.com/wippyai/docbridge/syntax"
)

// Version is reported as sys.version.
const Version = "0.1.0"

// maxTrees bounds the parse cache. When exceeded the cache starts over.
const maxTrees = 512

// Options configures an Engine.
type Options struct {
	Logger *zap.Logger
}

// Engine is the reference compiler.Engine.
type Engine struct {
	logger *zap.Logger

	mu    sync.Mutex
	trees map[*syntax.Source]tree
}

type tree struct {
	version uint64
	root    *syntax.Node
}

var _ compiler.Engine = (*Engine)(nil)

// New creates an engine logging to the package logger.
func New() *Engine {
	return NewWithOptions(Options{})
}

// NewWithOptions creates an engine with explicit options.
func NewWithOptions(opts Options) *Engine {
	l := opts.Logger
	if l == nil {
		l = Logger()
	}
	return &Engine{logger: l.Named("mini"), trees: make(map[*syntax.Source]tree)}
}

func (e *Engine) Name() string { return "mini" }

func (e *Engine) Parse(text string, mode syntax.Mode) *syntax.Node {
	return Parse(text, mode)
}

// parse returns the markup tree of src, reusing the previous tree while
// the source version is unchanged.
func (e *Engine) parse(src *syntax.Source) *syntax.Node {
	if src.ID().Path == "" {
		return Parse(src.Text(), syntax.ModeMarkup)
	}
	e.mu.Lock()
	t, ok := e.trees[src]
	e.mu.Unlock()
	if ok && t.version == src.Version() {
		return t.root
	}
	root := Parse(src.Text(), syntax.ModeMarkup)
	e.mu.Lock()
	if len(e.trees) >= maxTrees {
		e.trees = make(map[*syntax.Source]tree)
	}
	e.trees[src] = tree{version: src.Version(), root: root}
	e.mu.Unlock()
	return root
}

func (e *Engine) Compile(w compiler.World) (out compiler.Output) {
	vm := newVM(e, w)
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("compilation panicked", zap.Any("panic", r))
			out = compiler.Output{
				Warnings: vm.warnings,
				Errors:   []diag.SourceDiagnostic{diag.Errorf(syntax.Detached, "internal error: %v", r)},
			}
		}
	}()

	main, err := w.Main()
	if err != nil {
		return compiler.Output{Errors: []diag.SourceDiagnostic{diag.FromFileError(syntax.Detached, err)}}
	}
	m, err := vm.evalFile(main, syntax.Detached)
	if err != nil {
		return compiler.Output{Warnings: vm.warnings, Errors: diagnostics(err)}
	}
	doc := layout(m.Content, w.Book())
	e.logger.Debug("compiled",
		zap.Stringer("main", main),
		zap.Int("pages", len(doc.Pages)),
		zap.Int("warnings", len(vm.warnings)))
	return compiler.Output{Document: doc, Warnings: vm.warnings}
}

func (e *Engine) Eval(w compiler.World, text string, mode syntax.Mode) (v compiler.Value, errs []diag.SourceDiagnostic) {
	vm := newVM(e, w)
	vm.src = syntax.DetachedSource(text)
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("evaluation panicked", zap.Any("panic", r))
			v, errs = nil, []diag.SourceDiagnostic{diag.Errorf(syntax.Detached, "internal error: %v", r)}
		}
	}()

	root := Parse(text, mode)
	if err := vm.syntaxErrors(root); err != nil {
		return nil, diagnostics(err)
	}
	n := node{root, 0}
	var err error
	switch mode {
	case syntax.ModeCode:
		v, err = vm.code(n)
	case syntax.ModeMath:
		v = compiler.NewElement("equation", "block", false, "body", compiler.Text(root.Full()))
	default:
		v, err = vm.markup(n)
	}
	if err != nil {
		return nil, diagnostics(err)
	}
	return v, nil
}

func (e *Engine) Select(doc *compiler.Document, selector compiler.Value) ([]compiler.Value, error) {
	sel, err := toSelector(selector)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("no document to query")
	}
	out := []compiler.Value{}
	for _, el := range doc.Select(sel.Matches) {
		out = append(out, el)
	}
	return out, nil
}
