package fonts

import (
	"encoding/binary"
	"fmt"
	"strings"
	"unicode/utf16"
)

const (
	tagTTC  = "ttcf"
	tagName = "name"
	tagOS2  = "OS/2"

	nameFamily    = 1
	nameSubfamily = 2
	nameTypoFam   = 16
)

// parseCollection returns the face infos stored in data. Single fonts yield
// one info; collections yield one per face.
func parseCollection(data []byte) ([]Info, error) {
	if len(data) < 12 {
		return nil, fmt.Errorf("font file too short (%d bytes)", len(data))
	}
	if string(data[:4]) != tagTTC {
		info, err := parseFace(data, 0)
		if err != nil {
			return nil, err
		}
		return []Info{info}, nil
	}
	n := int(binary.BigEndian.Uint32(data[8:12]))
	if n <= 0 || 12+4*n > len(data) {
		return nil, fmt.Errorf("malformed font collection header")
	}
	infos := make([]Info, 0, n)
	for i := 0; i < n; i++ {
		off := int(binary.BigEndian.Uint32(data[12+4*i:]))
		info, err := parseFace(data, off)
		if err != nil {
			return nil, fmt.Errorf("face %d: %w", i, err)
		}
		info.Index = uint32(i)
		infos = append(infos, info)
	}
	return infos, nil
}

type table struct {
	off, len int
}

func parseFace(data []byte, off int) (Info, error) {
	if off < 0 || off+12 > len(data) {
		return Info{}, fmt.Errorf("table directory out of bounds")
	}
	numTables := int(binary.BigEndian.Uint16(data[off+4:]))
	dir := off + 12
	if dir+16*numTables > len(data) {
		return Info{}, fmt.Errorf("table directory out of bounds")
	}
	tables := make(map[string]table, numTables)
	for i := 0; i < numTables; i++ {
		rec := data[dir+16*i:]
		t := table{
			off: int(binary.BigEndian.Uint32(rec[8:])),
			len: int(binary.BigEndian.Uint32(rec[12:])),
		}
		if t.off < 0 || t.len < 0 || t.off+t.len > len(data) {
			return Info{}, fmt.Errorf("table %q out of bounds", rec[:4])
		}
		tables[string(rec[:4])] = t
	}

	info := Info{Weight: 400, Style: StyleNormal}
	name, ok := tables[tagName]
	if !ok {
		return Info{}, fmt.Errorf("missing name table")
	}
	names := parseNames(data[name.off : name.off+name.len])
	info.Family = names[nameTypoFam]
	if info.Family == "" {
		info.Family = names[nameFamily]
	}
	if info.Family == "" {
		return Info{}, fmt.Errorf("font has no family name")
	}
	sub := strings.ToLower(names[nameSubfamily])
	if strings.Contains(sub, "italic") || strings.Contains(sub, "oblique") {
		info.Style = StyleItalic
	}
	if os2, ok := tables[tagOS2]; ok && os2.len >= 6 {
		info.Weight = binary.BigEndian.Uint16(data[os2.off+4:])
	} else if strings.Contains(sub, "bold") {
		info.Weight = 700
	}
	return info, nil
}

// parseNames reads the name records, preferring Windows Unicode entries.
func parseNames(t []byte) map[uint16]string {
	out := make(map[uint16]string)
	if len(t) < 6 {
		return out
	}
	count := int(binary.BigEndian.Uint16(t[2:]))
	strOff := int(binary.BigEndian.Uint16(t[4:]))
	for i := 0; i < count; i++ {
		rec := 6 + 12*i
		if rec+12 > len(t) {
			break
		}
		platform := binary.BigEndian.Uint16(t[rec:])
		id := binary.BigEndian.Uint16(t[rec+6:])
		length := int(binary.BigEndian.Uint16(t[rec+8:]))
		off := strOff + int(binary.BigEndian.Uint16(t[rec+10:]))
		if off+length > len(t) {
			continue
		}
		raw := t[off : off+length]
		switch platform {
		case 0, 3:
			u := make([]uint16, len(raw)/2)
			for j := range u {
				u[j] = binary.BigEndian.Uint16(raw[2*j:])
			}
			out[id] = string(utf16.Decode(u))
		case 1:
			if _, ok := out[id]; !ok {
				out[id] = string(raw)
			}
		}
	}
	return out
}
