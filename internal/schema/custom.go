package schema

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// ErrInvalidCustomType is returned for an unparseable custom attribute type.
var ErrInvalidCustomType = errors.New("invalid custom attribute type")

// Storage is the component type a custom attribute is written with.
type Storage uint8

// Storage types allowed for application-specific vertex attributes.
const (
	StorageF32 Storage = iota
	StorageU16
	StorageU8
	StorageI16
	StorageI8
	StorageU32
)

var storageNames = []string{"f32", "u16", "u8", "i16", "i8", "u32"}

// String returns the storage name.
func (s Storage) String() string {
	if int(s) < len(storageNames) {
		return storageNames[s]
	}
	return "unknown"
}

// Size returns the byte size of one component.
func (s Storage) Size() int {
	switch s {
	case StorageU16, StorageI16:
		return 2
	case StorageU8, StorageI8:
		return 1
	default:
		return 4
	}
}

// CustomType is the declared shape and storage of a custom attribute.
type CustomType struct {
	Shape   int
	Storage Storage
}

// String formats the type the way ParseCustomType reads it.
func (t CustomType) String() string {
	if t.Shape == 1 {
		return t.Storage.String()
	}
	return fmt.Sprintf("vec%d(%s)", t.Shape, t.Storage)
}

// ParseCustomType parses "f32", "u8", "vec3(f32)", "vec2(u16)" and so on.
// An empty string means scalar f32.
func ParseCustomType(s string) (CustomType, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return CustomType{1, StorageF32}, nil
	}
	shape := 1
	if rest, ok := strings.CutPrefix(s, "vec"); ok {
		open := strings.IndexByte(rest, '(')
		if open < 1 || !strings.HasSuffix(rest, ")") {
			return CustomType{}, fmt.Errorf("%w: %q", ErrInvalidCustomType, s)
		}
		n, err := strconv.Atoi(rest[:open])
		if err != nil || n < 2 || n > 4 {
			return CustomType{}, fmt.Errorf("%w: %q", ErrInvalidCustomType, s)
		}
		shape = n
		s = rest[open+1 : len(rest)-1]
	}
	for i, name := range storageNames {
		if s == name {
			return CustomType{shape, Storage(i)}, nil
		}
	}
	return CustomType{}, fmt.Errorf("%w: %q", ErrInvalidCustomType, s)
}

// Custom declares one custom attribute to export.
type Custom struct {
	Name string
	Type CustomType
}

// ShoutySnake converts an attribute name to the _SHOUTY_SNAKE_CASE form
// glTF requires for application-specific semantics.
func ShoutySnake(name string) string {
	var b strings.Builder
	b.WriteByte('_')
	prev := rune(0)
	for _, r := range name {
		switch {
		case unicode.IsUpper(r):
			if unicode.IsLower(prev) || unicode.IsDigit(prev) {
				b.WriteByte('_')
			}
			b.WriteRune(r)
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToUpper(r))
		default:
			r = '_'
			if prev == '_' || b.Len() == 1 {
				prev = r
				continue
			}
			b.WriteByte('_')
		}
		prev = r
	}
	return strings.TrimRight(b.String(), "_")
}
