package bridge

import (
	"encoding/binary"

	"fortio.org/safecast"
	"go.uber.org/zap"

	"github.com/wippyai/docbridge/boundary"
	"github.com/wippyai/docbridge/errors"
	"github.com/wippyai/docbridge/syntax"
)

// FlattenedTree is a flattened syntax tree handed to the host. Marks holds
// little-endian int64 marks, Errors the concatenated error messages and
// ErrorStarts little-endian int32 offsets into Errors. All three buffers
// are owned by the host until ReleaseFlattenedTree.
type FlattenedTree struct {
	Marks       boundary.BufferHandle `json:"marks"`
	Errors      boundary.BufferHandle `json:"errors"`
	ErrorStarts boundary.BufferHandle `json:"errors_starts"`
}

// ParseSyntax parses the source, which is consumed, in mode 0 (markup),
// 1 (code) or 2 (math).
func (b *Bridge) ParseSyntax(source boundary.BufferHandle, mode int32) (tree FlattenedTree, err error) {
	defer b.recover(&err)
	src, err := b.input(source)
	if err != nil {
		return FlattenedTree{}, err
	}
	m, err := syntax.ParseMode(mode)
	if err != nil {
		return FlattenedTree{}, errors.FromError(errors.IllegalArgument,
			errors.Wrap(errors.PhaseSyntax, errors.KindInvalidInput, err, "parse_syntax"))
	}

	flat := syntax.Flatten(b.engine.Parse(src, m))
	marks := flat.Encode()
	packed := make([]byte, 0, 8*len(marks))
	for _, v := range marks {
		packed = binary.LittleEndian.AppendUint64(packed, uint64(v))
	}
	starts := make([]byte, 0, 4*len(flat.ErrorStarts))
	for _, v := range flat.ErrorStarts {
		starts = binary.LittleEndian.AppendUint32(starts, uint32(v))
	}

	var wrapped []boundary.BufferHandle
	for _, data := range [][]byte{packed, flat.Errors, starts} {
		h, err := b.arena.Wrap(data)
		if err != nil {
			for _, w := range wrapped {
				_ = b.arena.Release(w)
			}
			return FlattenedTree{}, exception(errors.Internal, err)
		}
		wrapped = append(wrapped, h)
	}
	b.logger.Debug("parsed", zap.Stringer("mode", m), zap.Int("marks", len(marks)), zap.Int("errors", len(flat.ErrorStarts)))
	return FlattenedTree{Marks: wrapped[0], Errors: wrapped[1], ErrorStarts: wrapped[2]}, nil
}

// ReleaseFlattenedTree frees the buffers of a tree from ParseSyntax.
func (b *Bridge) ReleaseFlattenedTree(tree FlattenedTree) error {
	var first error
	for _, h := range []boundary.BufferHandle{tree.Marks, tree.Errors, tree.ErrorStarts} {
		if err := b.arena.Release(h); err != nil && first == nil {
			first = exception(errors.OwnershipViolation, err)
		}
	}
	return first
}

// ReadFlattenedTree decodes a tree without releasing it.
func (b *Bridge) ReadFlattenedTree(tree FlattenedTree) (syntax.Flattened, error) {
	var (
		flat   syntax.Flattened
		packed []int64
	)
	err := b.arena.Inspect(tree.Marks, func(data []byte) error {
		if len(data)%8 != 0 {
			return errors.InvalidData(errors.PhaseSyntax, []string{"marks"}, "length is not a multiple of 8")
		}
		packed = make([]int64, 0, len(data)/8)
		for i := 0; i+8 <= len(data); i += 8 {
			v, err := safecast.Conv[int64](binary.LittleEndian.Uint64(data[i:]))
			if err != nil {
				return errors.InvalidData(errors.PhaseSyntax, []string{"marks"}, err.Error())
			}
			packed = append(packed, v)
		}
		return nil
	})
	if err != nil {
		return flat, err
	}
	flat.Entries = syntax.Decode(packed)

	if err := b.arena.Inspect(tree.Errors, func(data []byte) error {
		flat.Errors = append([]byte(nil), data...)
		return nil
	}); err != nil {
		return flat, err
	}
	err = b.arena.Inspect(tree.ErrorStarts, func(data []byte) error {
		if len(data)%4 != 0 {
			return errors.InvalidData(errors.PhaseSyntax, []string{"errors_starts"}, "length is not a multiple of 4")
		}
		for i := 0; i+4 <= len(data); i += 4 {
			flat.ErrorStarts = append(flat.ErrorStarts, int32(binary.LittleEndian.Uint32(data[i:])))
		}
		return nil
	})
	return flat, err
}

// FormatSource formats the source, which is consumed. Formatter failures
// yield an empty string.
func (b *Bridge) FormatSource(source boundary.BufferHandle, column, tab int32) (boundary.BufferHandle, error) {
	src, err := b.input(source)
	if err != nil {
		return boundary.BufferHandle{}, err
	}
	out := b.format(src, int(column), int(tab))
	h, err := b.arena.WrapString(out)
	if err != nil {
		return boundary.BufferHandle{}, exception(errors.Internal, err)
	}
	return h, nil
}

func (b *Bridge) format(src string, column, tab int) (out string) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Warn("formatter panicked", zap.Any("panic", r))
			out = ""
		}
	}()
	formatted, err := b.engine.Format(src, column, tab)
	if err != nil {
		b.logger.Debug("format failed", zap.Error(err))
		return ""
	}
	return formatted
}
