package fonts

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"unicode/utf16"

	"github.com/google/go-cmp/cmp"
)

// buildFont assembles a minimal sfnt with a name table and an optional OS/2
// weight.
func buildFont(family, subfamily string, weight uint16) []byte {
	type rec struct {
		id  uint16
		str []byte
	}
	encode := func(s string) []byte {
		u := utf16.Encode([]rune(s))
		b := make([]byte, 2*len(u))
		for i, c := range u {
			binary.BigEndian.PutUint16(b[2*i:], c)
		}
		return b
	}
	recs := []rec{{1, encode(family)}, {2, encode(subfamily)}}

	var name []byte
	name = binary.BigEndian.AppendUint16(name, 0)
	name = binary.BigEndian.AppendUint16(name, uint16(len(recs)))
	name = binary.BigEndian.AppendUint16(name, uint16(6+12*len(recs)))
	var strs []byte
	for _, r := range recs {
		name = binary.BigEndian.AppendUint16(name, 3)
		name = binary.BigEndian.AppendUint16(name, 1)
		name = binary.BigEndian.AppendUint16(name, 0x409)
		name = binary.BigEndian.AppendUint16(name, r.id)
		name = binary.BigEndian.AppendUint16(name, uint16(len(r.str)))
		name = binary.BigEndian.AppendUint16(name, uint16(len(strs)))
		strs = append(strs, r.str...)
	}
	name = append(name, strs...)

	os2 := make([]byte, 6)
	binary.BigEndian.PutUint16(os2[4:], weight)

	const tables = 2
	head := make([]byte, 12+16*tables)
	binary.BigEndian.PutUint32(head, 0x00010000)
	binary.BigEndian.PutUint16(head[4:], tables)
	off := len(head)
	put := func(i int, tag string, length int) {
		r := head[12+16*i:]
		copy(r, tag)
		binary.BigEndian.PutUint32(r[8:], uint32(off))
		binary.BigEndian.PutUint32(r[12:], uint32(length))
		off += length
	}
	put(0, "name", len(name))
	put(1, "OS/2", len(os2))
	return append(append(head, name...), os2...)
}

func TestParseCollection(t *testing.T) {
	infos, err := parseCollection(buildFont("Libertinus Serif", "Bold Italic", 700))
	if err != nil {
		t.Fatal(err)
	}
	want := []Info{{Family: "Libertinus Serif", Style: StyleItalic, Weight: 700}}
	if diff := cmp.Diff(want, infos); diff != "" {
		t.Errorf("infos mismatch (-want +got):\n%s", diff)
	}

	for _, bad := range [][]byte{nil, []byte("not a font at all"), []byte("ttcf\x00\x01\x00\x00\x00\x00\x00\x09")} {
		if _, err := parseCollection(bad); err == nil {
			t.Errorf("parseCollection(%q) should fail", bad)
		}
	}
}

func TestSearch(t *testing.T) {
	dir := t.TempDir()
	files := map[string][]byte{
		"b.ttf":      buildFont("Zed Sans", "Regular", 400),
		"a.otf":      buildFont("Alpha", "Italic", 400),
		"sub/c.ttf":  buildFont("Alpha", "Regular", 400),
		"broken.ttf": []byte("garbage"),
		"notes.txt":  []byte("ignored"),
	}
	for name, data := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	cat, err := Search(context.Background(), SearchOptions{Dirs: []string{dir, filepath.Join(dir, "missing")}})
	if err != nil {
		t.Fatal(err)
	}
	if cat.Len() != 3 {
		t.Fatalf("Len = %d, want 3", cat.Len())
	}
	var got []string
	for _, info := range cat.Book() {
		got = append(got, info.Family+"/"+info.Style.String())
	}
	if diff := cmp.Diff([]string{"Alpha/normal", "Alpha/italic", "Zed Sans/normal"}, got); diff != "" {
		t.Errorf("book order (-want +got):\n%s", diff)
	}

	f, ok := cat.Font(2)
	if !ok {
		t.Fatal("Font(2) missing")
	}
	data, err := f.Data()
	if err != nil || len(data) == 0 {
		t.Errorf("Data = %d bytes, %v", len(data), err)
	}
	if _, ok := cat.Font(3); ok {
		t.Error("Font(3) should be out of range")
	}
	if i := cat.Select("alpha", StyleItalic, 400); i != 1 {
		t.Errorf("Select = %d, want 1", i)
	}
	if i := cat.Select("Missing", StyleNormal, 400); i != -1 {
		t.Errorf("Select = %d, want -1", i)
	}
}

func TestNilCatalog(t *testing.T) {
	var c *Catalog
	if c.Len() != 0 || c.Book() != nil {
		t.Error("nil catalog should be empty")
	}
	if _, ok := c.Font(0); ok {
		t.Error("nil catalog has no fonts")
	}
}
