// Package boardinfo backs the GetInt/GetString SVCs of spec.md §4.4,
// grounded on the teacher's Config struct (a small fixed set of
// board/runtime facts resolved once at startup and read thereafter).
package boardinfo

import "github.com/lupi-os/lupi/internal/kerr"

// IntKey identifies a GetInt(which) query.
type IntKey int

const (
	IntRAMBytes IntKey = iota
	IntBootMode
	IntScreenWidth
	IntScreenHeight
	IntScreenFormat
)

// StringKey identifies a GetString(which) query.
type StringKey int

const (
	StringVersion StringKey = iota
	StringBoardRevision
)

// Info is the immutable board-parameter block derived from ATAGS at
// boot (spec.md §6's "boot parameter block containing RAM size and
// board revision").
type Info struct {
	RAMBytes      uint64
	BootMode      uint32
	ScreenWidth   uint32
	ScreenHeight  uint32
	ScreenFormat  uint32
	Version       string
	BoardRevision string
}

// GetInt answers a GetInt SVC.
func (i *Info) GetInt(key IntKey) (uint32, error) {
	switch key {
	case IntRAMBytes:
		return uint32(i.RAMBytes), nil
	case IntBootMode:
		return i.BootMode, nil
	case IntScreenWidth:
		return i.ScreenWidth, nil
	case IntScreenHeight:
		return i.ScreenHeight, nil
	case IntScreenFormat:
		return i.ScreenFormat, nil
	default:
		return 0, kerr.New("GetInt", kerr.CodeArgument, "unknown board-info key")
	}
}

// GetString answers a GetString SVC.
func (i *Info) GetString(key StringKey) (string, error) {
	switch key {
	case StringVersion:
		return i.Version, nil
	case StringBoardRevision:
		return i.BoardRevision, nil
	default:
		return "", kerr.New("GetString", kerr.CodeArgument, "unknown board-info key")
	}
}
