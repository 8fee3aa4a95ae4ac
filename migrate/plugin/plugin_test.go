package plugin

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/hashicorp/go-hclog"
	goplugin "github.com/hashicorp/go-plugin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/schemaver/migrate"
	"github.com/satishbabariya/schemaver/migrate/dataservice"
	"github.com/satishbabariya/schemaver/migrate/dataservice/sqlbase"
	"github.com/satishbabariya/schemaver/migrate/dataservice/sqlite"
)

func dispense(t *testing.T) dataservice.DataService {
	t.Helper()
	impl, err := sqlite.New(sqlbase.Options{})
	require.NoError(t, err)

	client, _ := goplugin.TestPluginRPCConn(t, goplugin.PluginSet{
		sqlite.Platform: &DataServicePlugin{Impl: impl},
	}, nil)
	t.Cleanup(func() { client.Close() })

	raw, err := client.Dispense(sqlite.Platform)
	require.NoError(t, err)
	svc, ok := raw.(dataservice.DataService)
	require.True(t, ok)
	return svc
}

func TestDescribe(t *testing.T) {
	svc := dispense(t)
	assert.Equal(t, "sqlite", svc.Platform())
	assert.True(t, svc.IsAtomicDDLSupported())
	assert.Equal(t, "GO", svc.BatchOptions().Terminator)
	assert.Equal(t, []string{"--"}, svc.BatchOptions().LineComments)
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc := dispense(t)

	require.NoError(t, svc.Initialize(ctx, ":memory:"))
	require.NoError(t, svc.TestConnection(ctx))

	name, err := svc.DatabaseName()
	require.NoError(t, err)
	assert.Equal(t, ":memory:", name)

	exists, err := svc.CheckIfDatabaseExists(ctx, name)
	require.NoError(t, err)
	assert.True(t, exists)

	latest, err := svc.GetLatestAppliedVersion(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)

	require.NoError(t, svc.ConfigureTrackingTable(ctx))

	sess, err := svc.BeginSession(ctx, true)
	require.NoError(t, err)
	assert.True(t, sess.Transactional())
	require.NoError(t, sess.ExecuteBatch(ctx, "CREATE TABLE ${T} (Id INT)", migrate.TokenMap{"T": "Foo"}))
	require.NoError(t, sess.InsertTrackingRecord(ctx, migrate.TrackingRecord{
		Version:       "v1.00",
		AppliedBy:     "tester",
		AppliedByTool: migrate.Tool,
	}))
	require.NoError(t, sess.Commit())

	records, err := svc.GetAllVersions(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "v1.00", records[0].Version)
	assert.Equal(t, "tester", records[0].AppliedBy)
	assert.False(t, records[0].AppliedAtUTC.IsZero())

	latest, err = svc.GetLatestAppliedVersion(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "v1.00", latest.String())

	require.NoError(t, svc.DropTrackedObjects(ctx))
	require.NoError(t, svc.EraseTrackingTable(ctx))
	ok, err := svc.CheckIfTrackingTableExists(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, svc.Close())
}

func TestErrorClassSurvives(t *testing.T) {
	ctx := context.Background()
	svc := dispense(t)
	require.NoError(t, svc.Initialize(ctx, ":memory:"))

	sess, err := svc.BeginSession(ctx, true)
	require.NoError(t, err)

	err = sess.ExecuteBatch(ctx, "CREATE TABL Nope (Id INT)", nil)
	require.Error(t, err)
	assert.True(t, migrate.IsBatchExecution(err))
	assert.Contains(t, err.Error(), "syntax error")
	require.NoError(t, sess.Rollback())

	err = sess.ExecuteBatch(ctx, "SELECT 1", nil)
	assert.ErrorContains(t, err, "unknown session")
}

func TestCancelledContextSkipsCall(t *testing.T) {
	svc := dispense(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := svc.Initialize(ctx, ":memory:")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWireError(t *testing.T) {
	assert.Nil(t, toWire(nil))
	assert.NoError(t, (*WireError)(nil).err())

	w := toWire(migrate.MarkConnection(assert.AnError))
	assert.Equal(t, "connection", w.Class)
	assert.True(t, migrate.IsConnection(w.err()))
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelDebug)
	logger.Debug("executing batch", "version", "v1.00")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "executing batch", line["@message"])
	assert.Equal(t, "debug", line["@level"])
	assert.Equal(t, "v1.00", line["version"])
	assert.Contains(t, line, "@timestamp")
}

func TestLevels(t *testing.T) {
	assert.Equal(t, hclog.Debug, HCLogLevel(slog.LevelDebug))
	assert.Equal(t, hclog.Info, HCLogLevel(slog.LevelInfo))
	assert.Equal(t, hclog.Error, HCLogLevel(slog.LevelError+4))
	assert.Equal(t, slog.LevelDebug, LevelFromEnv("trace"))
	assert.Equal(t, slog.LevelWarn, LevelFromEnv(" warn "))
	assert.Equal(t, slog.LevelInfo, LevelFromEnv("bogus"))
}
