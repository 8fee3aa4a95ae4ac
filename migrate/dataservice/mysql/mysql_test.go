package mysql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/schemaver/migrate/dataservice"
	"github.com/satishbabariya/schemaver/migrate/dataservice/sqlbase"
	"github.com/satishbabariya/schemaver/migrate/parser"
)

func TestDialect(t *testing.T) {
	d := Dialect{}
	cs := "app:secret@tcp(localhost:3306)/shop"

	dsn, err := d.DSN(cs)
	require.NoError(t, err)
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "multiStatements=true")
	assert.Contains(t, dsn, "/shop")

	name, err := d.DatabaseName(cs)
	require.NoError(t, err)
	assert.Equal(t, "shop", name)

	server, err := d.ServerDSN(cs)
	require.NoError(t, err)
	assert.NotContains(t, server, "shop")

	_, err = d.DatabaseName("app@tcp(localhost:3306)/")
	assert.Error(t, err)

	assert.False(t, d.AtomicDDL())
	assert.Equal(t, "CREATE DATABASE `we``ird`", d.CreateDatabaseStatement("we`ird"))
}

func TestBatchOptionsHashComments(t *testing.T) {
	batches := parser.Split("SELECT 1; # don't\nGO\nSELECT 2;", Dialect{}.BatchOptions())
	assert.Equal(t, []string{"SELECT 1; # don't", "SELECT 2;"}, batches)
}

func TestBatchOptionsBackslashEscapes(t *testing.T) {
	for _, d := range []Dialect{{}, {platform: dataservice.MariaDB}} {
		opts := d.BatchOptions()
		assert.Equal(t,
			[]string{"INSERT INTO t VALUES ('it\\'s');", "SELECT 1;"},
			parser.Split("INSERT INTO t VALUES ('it\\'s');\nGO\nSELECT 1;", opts))
		assert.Equal(t,
			[]string{"CREATE TABLE `o'brien` (id int);", "SELECT 1;"},
			parser.Split("CREATE TABLE `o'brien` (id int);\nGO\nSELECT 1;", opts))
	}
}

func TestPlatforms(t *testing.T) {
	my, err := New(sqlbase.Options{})
	require.NoError(t, err)
	assert.Equal(t, "mysql", my.Platform())

	maria, err := NewMariaDB(sqlbase.Options{})
	require.NoError(t, err)
	assert.Equal(t, "mariadb", maria.Platform())
	assert.False(t, maria.IsAtomicDDLSupported())
}
