package plugin

import (
	"github.com/satishbabariya/schemaver/migrate"
	"github.com/satishbabariya/schemaver/migrate/parser"
)

// Errors travel in the reply instead of the net/rpc error so the class
// survives the trip. The net/rpc error is reserved for transport failures.
// Calls without arguments pass a nil interface{}.

// WireError is an error flattened to its class and message.
type WireError struct {
	Class   string
	Message string
}

func toWire(err error) *WireError {
	if err == nil {
		return nil
	}
	return &WireError{Class: migrate.Class(err), Message: err.Error()}
}

func (w *WireError) err() error {
	if w == nil {
		return nil
	}
	return migrate.FromClass(w.Class, w.Message)
}

type ErrReply struct {
	Err *WireError
}

type DescribeReply struct {
	Platform string
	Atomic   bool
	Options  parser.Options
}

type InitializeArgs struct {
	ConnectionString string
}

type NameArgs struct {
	Name string
}

type StringReply struct {
	Value string
	Err   *WireError
}

type BoolReply struct {
	Value bool
	Err   *WireError
}

type VersionsReply struct {
	Records []migrate.TrackingRecord
	Err     *WireError
}

type LatestReply struct {
	Version *migrate.Version
	Err     *WireError
}

type BeginArgs struct {
	Transactional bool
}

type SessionReply struct {
	ID            string
	Transactional bool
	Err           *WireError
}

type SessionArgs struct {
	ID string
}

type BatchArgs struct {
	ID     string
	Batch  string
	Tokens migrate.TokenMap
}

type RecordArgs struct {
	ID     string
	Record migrate.TrackingRecord
}
