package syntax

import (
	"sync"
)

// FileRef is the interned form of a FileID stored inside spans.
// FileRef 0 is reserved for detached spans.
type FileRef uint16

// Interner assigns stable FileRefs to FileIDs.
type Interner struct {
	mu   sync.RWMutex
	refs map[string]FileRef
	ids  []FileID
}

// NewInterner creates an empty interner.
func NewInterner() *Interner {
	return &Interner{refs: make(map[string]FileRef), ids: []FileID{{}}}
}

// Intern returns the ref for id, assigning a new one on first use. Once the
// ref space is exhausted new files are detached (ref 0).
func (in *Interner) Intern(id FileID) FileRef {
	key := id.Key()

	in.mu.RLock()
	ref, ok := in.refs[key]
	in.mu.RUnlock()
	if ok {
		return ref
	}

	in.mu.Lock()
	defer in.mu.Unlock()
	if ref, ok := in.refs[key]; ok {
		return ref
	}
	if len(in.ids) > 0xffff {
		return 0
	}
	ref = FileRef(len(in.ids))
	in.ids = append(in.ids, NewFileID(id.Package, id.Path))
	in.refs[key] = ref
	return ref
}

// Lookup returns the FileID behind ref.
func (in *Interner) Lookup(ref FileRef) (FileID, bool) {
	if ref == 0 {
		return FileID{}, false
	}
	in.mu.RLock()
	defer in.mu.RUnlock()
	if int(ref) >= len(in.ids) {
		return FileID{}, false
	}
	return in.ids[ref], true
}

// Len returns the number of interned files.
func (in *Interner) Len() int {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return len(in.ids) - 1
}

var files = NewInterner()

// Intern interns id in the process-wide interner shared by all worlds.
func Intern(id FileID) FileRef {
	return files.Intern(id)
}

// Lookup resolves ref in the process-wide interner.
func Lookup(ref FileRef) (FileID, bool) {
	return files.Lookup(ref)
}
