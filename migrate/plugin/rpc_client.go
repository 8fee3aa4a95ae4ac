package plugin

import (
	"context"
	"net/rpc"

	"github.com/cockroachdb/errors"

	"github.com/satishbabariya/schemaver/migrate"
	"github.com/satishbabariya/schemaver/migrate/dataservice"
	"github.com/satishbabariya/schemaver/migrate/parser"
)

// RPCClient is the host-side proxy for a plugin DataService. Capability
// flags are fetched once when the plugin is dispensed.
type RPCClient struct {
	client *rpc.Client

	platform string
	atomic   bool
	options  parser.Options
}

var _ dataservice.DataService = (*RPCClient)(nil)

// NewRPCClient describes the remote service and returns its proxy.
func NewRPCClient(c *rpc.Client) (*RPCClient, error) {
	var d DescribeReply
	if err := c.Call("Plugin.Describe", new(interface{}), &d); err != nil {
		return nil, errors.Wrap(err, "failed to describe plugin data service")
	}
	return &RPCClient{
		client:   c,
		platform: d.Platform,
		atomic:   d.Atomic,
		options:  d.Options,
	}, nil
}

// call checks ctx, performs the RPC and marks transport failures as
// connection errors.
func (c *RPCClient) call(ctx context.Context, method string, args, reply interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if args == nil {
		args = new(interface{})
	}
	if err := c.client.Call("Plugin."+method, args, reply); err != nil {
		return migrate.MarkConnection(errors.Wrapf(err, "plugin call %s failed", method))
	}
	return nil
}

func (c *RPCClient) Platform() string             { return c.platform }
func (c *RPCClient) IsAtomicDDLSupported() bool   { return c.atomic }
func (c *RPCClient) BatchOptions() parser.Options { return c.options }

func (c *RPCClient) Initialize(ctx context.Context, connectionString string) error {
	var reply ErrReply
	if err := c.call(ctx, "Initialize", InitializeArgs{ConnectionString: connectionString}, &reply); err != nil {
		return err
	}
	return reply.Err.err()
}

func (c *RPCClient) DatabaseName() (string, error) {
	var reply StringReply
	if err := c.call(context.Background(), "DatabaseName", nil, &reply); err != nil {
		return "", err
	}
	return reply.Value, reply.Err.err()
}

func (c *RPCClient) TestConnection(ctx context.Context) error {
	return c.errCall(ctx, "TestConnection", nil)
}

func (c *RPCClient) CheckIfDatabaseExists(ctx context.Context, name string) (bool, error) {
	var reply BoolReply
	if err := c.call(ctx, "CheckIfDatabaseExists", NameArgs{Name: name}, &reply); err != nil {
		return false, err
	}
	return reply.Value, reply.Err.err()
}

func (c *RPCClient) CreateDatabase(ctx context.Context, name string) error {
	return c.errCall(ctx, "CreateDatabase", NameArgs{Name: name})
}

func (c *RPCClient) CheckIfTrackingTableExists(ctx context.Context) (bool, error) {
	var reply BoolReply
	if err := c.call(ctx, "CheckIfTrackingTableExists", nil, &reply); err != nil {
		return false, err
	}
	return reply.Value, reply.Err.err()
}

func (c *RPCClient) ConfigureTrackingTable(ctx context.Context) error {
	return c.errCall(ctx, "ConfigureTrackingTable", nil)
}

func (c *RPCClient) GetAllVersions(ctx context.Context) ([]migrate.TrackingRecord, error) {
	var reply VersionsReply
	if err := c.call(ctx, "GetAllVersions", nil, &reply); err != nil {
		return nil, err
	}
	return reply.Records, reply.Err.err()
}

func (c *RPCClient) GetLatestAppliedVersion(ctx context.Context) (*migrate.Version, error) {
	var reply LatestReply
	if err := c.call(ctx, "GetLatestAppliedVersion", nil, &reply); err != nil {
		return nil, err
	}
	return reply.Version, reply.Err.err()
}

func (c *RPCClient) BeginSession(ctx context.Context, transactional bool) (dataservice.Session, error) {
	var reply SessionReply
	if err := c.call(ctx, "BeginSession", BeginArgs{Transactional: transactional}, &reply); err != nil {
		return nil, err
	}
	if err := reply.Err.err(); err != nil {
		return nil, err
	}
	return &rpcSession{client: c, id: reply.ID, transactional: reply.Transactional}, nil
}

func (c *RPCClient) EraseTrackingTable(ctx context.Context) error {
	return c.errCall(ctx, "EraseTrackingTable", nil)
}

func (c *RPCClient) DropTrackedObjects(ctx context.Context) error {
	return c.errCall(ctx, "DropTrackedObjects", nil)
}

// Close closes the remote service. The plugin process keeps running until
// the loader kills it.
func (c *RPCClient) Close() error {
	return c.errCall(context.Background(), "Close", nil)
}

func (c *RPCClient) errCall(ctx context.Context, method string, args interface{}) error {
	var reply ErrReply
	if err := c.call(ctx, method, args, &reply); err != nil {
		return err
	}
	return reply.Err.err()
}

type rpcSession struct {
	client        *RPCClient
	id            string
	transactional bool
}

func (s *rpcSession) Transactional() bool { return s.transactional }

func (s *rpcSession) ExecuteBatch(ctx context.Context, batch string, tokens migrate.TokenMap) error {
	return s.client.errCall(ctx, "ExecuteBatch", BatchArgs{ID: s.id, Batch: batch, Tokens: tokens})
}

func (s *rpcSession) InsertTrackingRecord(ctx context.Context, rec migrate.TrackingRecord) error {
	return s.client.errCall(ctx, "InsertTrackingRecord", RecordArgs{ID: s.id, Record: rec})
}

func (s *rpcSession) Commit() error {
	return s.client.errCall(context.Background(), "Commit", SessionArgs{ID: s.id})
}

func (s *rpcSession) Rollback() error {
	return s.client.errCall(context.Background(), "Rollback", SessionArgs{ID: s.id})
}
