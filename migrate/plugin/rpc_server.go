package plugin

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/satishbabariya/schemaver/migrate/dataservice"
)

// RPCServer runs inside the plugin process and forwards calls to the
// DataService. Contexts do not cross the process boundary; the host checks
// cancellation before each call.
type RPCServer struct {
	impl dataservice.DataService

	mu       sync.Mutex
	sessions map[string]dataservice.Session
}

// NewRPCServer wraps impl.
func NewRPCServer(impl dataservice.DataService) *RPCServer {
	return &RPCServer{
		impl:     impl,
		sessions: make(map[string]dataservice.Session),
	}
}

func (s *RPCServer) Describe(_ interface{}, reply *DescribeReply) error {
	reply.Platform = s.impl.Platform()
	reply.Atomic = s.impl.IsAtomicDDLSupported()
	reply.Options = s.impl.BatchOptions()
	return nil
}

func (s *RPCServer) Initialize(args InitializeArgs, reply *ErrReply) error {
	reply.Err = toWire(s.impl.Initialize(context.Background(), args.ConnectionString))
	return nil
}

func (s *RPCServer) DatabaseName(_ interface{}, reply *StringReply) error {
	name, err := s.impl.DatabaseName()
	reply.Value, reply.Err = name, toWire(err)
	return nil
}

func (s *RPCServer) TestConnection(_ interface{}, reply *ErrReply) error {
	reply.Err = toWire(s.impl.TestConnection(context.Background()))
	return nil
}

func (s *RPCServer) CheckIfDatabaseExists(args NameArgs, reply *BoolReply) error {
	ok, err := s.impl.CheckIfDatabaseExists(context.Background(), args.Name)
	reply.Value, reply.Err = ok, toWire(err)
	return nil
}

func (s *RPCServer) CreateDatabase(args NameArgs, reply *ErrReply) error {
	reply.Err = toWire(s.impl.CreateDatabase(context.Background(), args.Name))
	return nil
}

func (s *RPCServer) CheckIfTrackingTableExists(_ interface{}, reply *BoolReply) error {
	ok, err := s.impl.CheckIfTrackingTableExists(context.Background())
	reply.Value, reply.Err = ok, toWire(err)
	return nil
}

func (s *RPCServer) ConfigureTrackingTable(_ interface{}, reply *ErrReply) error {
	reply.Err = toWire(s.impl.ConfigureTrackingTable(context.Background()))
	return nil
}

func (s *RPCServer) GetAllVersions(_ interface{}, reply *VersionsReply) error {
	records, err := s.impl.GetAllVersions(context.Background())
	reply.Records, reply.Err = records, toWire(err)
	return nil
}

func (s *RPCServer) GetLatestAppliedVersion(_ interface{}, reply *LatestReply) error {
	v, err := s.impl.GetLatestAppliedVersion(context.Background())
	reply.Version, reply.Err = v, toWire(err)
	return nil
}

func (s *RPCServer) BeginSession(args BeginArgs, reply *SessionReply) error {
	sess, err := s.impl.BeginSession(context.Background(), args.Transactional)
	if err != nil {
		reply.Err = toWire(err)
		return nil
	}
	id := uuid.NewString()

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()

	reply.ID = id
	reply.Transactional = sess.Transactional()
	return nil
}

func (s *RPCServer) session(id string) (dataservice.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, errors.Newf("unknown session %s", id)
	}
	return sess, nil
}

func (s *RPCServer) ExecuteBatch(args BatchArgs, reply *ErrReply) error {
	sess, err := s.session(args.ID)
	if err == nil {
		err = sess.ExecuteBatch(context.Background(), args.Batch, args.Tokens)
	}
	reply.Err = toWire(err)
	return nil
}

func (s *RPCServer) InsertTrackingRecord(args RecordArgs, reply *ErrReply) error {
	sess, err := s.session(args.ID)
	if err == nil {
		err = sess.InsertTrackingRecord(context.Background(), args.Record)
	}
	reply.Err = toWire(err)
	return nil
}

func (s *RPCServer) Commit(args SessionArgs, reply *ErrReply) error {
	reply.Err = toWire(s.end(args.ID, dataservice.Session.Commit))
	return nil
}

func (s *RPCServer) Rollback(args SessionArgs, reply *ErrReply) error {
	reply.Err = toWire(s.end(args.ID, dataservice.Session.Rollback))
	return nil
}

func (s *RPCServer) end(id string, fn func(dataservice.Session) error) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if !ok {
		return nil
	}
	return fn(sess)
}

func (s *RPCServer) EraseTrackingTable(_ interface{}, reply *ErrReply) error {
	reply.Err = toWire(s.impl.EraseTrackingTable(context.Background()))
	return nil
}

func (s *RPCServer) DropTrackedObjects(_ interface{}, reply *ErrReply) error {
	reply.Err = toWire(s.impl.DropTrackedObjects(context.Background()))
	return nil
}

// Close rolls back sessions the host abandoned, then closes the service.
func (s *RPCServer) Close(_ interface{}, reply *ErrReply) error {
	s.mu.Lock()
	open := s.sessions
	s.sessions = make(map[string]dataservice.Session)
	s.mu.Unlock()

	for _, sess := range open {
		_ = sess.Rollback()
	}
	reply.Err = toWire(s.impl.Close())
	return nil
}
