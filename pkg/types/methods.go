package types

import (
	"fmt"
	"strings"
)

// Method indexes the nine-slot protocol method space. The order follows the
// registered HTTP method registry, with DEFINE occupying the POST slot and
// LOCATE the TRACE slot. The index doubles as the bit position in a
// MethodSet and as the offset into a header's origins list, so it must
// never be reordered.
type Method uint8

const (
	MethodGet Method = iota
	MethodHead
	MethodDefine
	MethodPut
	MethodDelete
	MethodConnect
	MethodOptions
	MethodLocate
	MethodPatch

	MethodCount = 9
)

func (m Method) String() string {
	switch m {
	case MethodGet:
		return "GET"
	case MethodHead:
		return "HEAD"
	case MethodDefine:
		return "DEFINE"
	case MethodPut:
		return "PUT"
	case MethodDelete:
		return "DELETE"
	case MethodConnect:
		return "CONNECT"
	case MethodOptions:
		return "OPTIONS"
	case MethodLocate:
		return "LOCATE"
	case MethodPatch:
		return "PATCH"
	}
	return fmt.Sprintf("Method(%d)", uint8(m))
}

func (m Method) Valid() bool {
	return m < MethodCount
}

// Mutates reports whether the method changes resource state. Mutating calls
// on the same path are serialized by the dispatcher.
func (m Method) Mutates() bool {
	switch m {
	case MethodDefine, MethodPut, MethodDelete, MethodPatch:
		return true
	}
	return false
}

// ParseMethod maps a wire-level verb to its Method index.
func ParseMethod(s string) (Method, error) {
	switch strings.ToUpper(s) {
	case "GET":
		return MethodGet, nil
	case "HEAD":
		return MethodHead, nil
	case "DEFINE":
		return MethodDefine, nil
	case "PUT":
		return MethodPut, nil
	case "DELETE":
		return MethodDelete, nil
	case "CONNECT":
		return MethodConnect, nil
	case "OPTIONS":
		return MethodOptions, nil
	case "LOCATE":
		return MethodLocate, nil
	case "PATCH":
		return MethodPatch, nil
	}
	return 0, fmt.Errorf("unknown method %q", s)
}

// MethodSet is a bitset over the nine method slots. Bit i set means method i
// is enabled.
type MethodSet uint16

func (s MethodSet) Has(m Method) bool {
	return s&(1<<m) != 0
}

func (s MethodSet) With(m Method) MethodSet {
	return s | 1<<m
}

func (s MethodSet) Without(m Method) MethodSet {
	return s &^ (1 << m)
}

// Methods lists the enabled methods in index order.
func (s MethodSet) Methods() []Method {
	out := make([]Method, 0, MethodCount)
	for m := Method(0); m < MethodCount; m++ {
		if s.Has(m) {
			out = append(out, m)
		}
	}
	return out
}

func (s MethodSet) String() string {
	names := make([]string, 0, MethodCount)
	for _, m := range s.Methods() {
		names = append(names, m.String())
	}
	return strings.Join(names, ",")
}

// AllMethods has every slot set, including CONNECT.
func AllMethods() MethodSet {
	return MethodSet(1<<MethodCount - 1)
}

// DefaultMethods is the method set of the built-in default header: every
// method except CONNECT, which the dispatcher never serves.
func DefaultMethods() MethodSet {
	return AllMethods().Without(MethodConnect)
}
