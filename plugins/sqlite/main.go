// Command schemaver-sqlite serves the SQLite data service as a plugin. Copy
// the binary into .plugins/sqlite of a workspace and run schemaver with
// --platform sqlite.
package main

import (
	"fmt"
	"os"

	"github.com/satishbabariya/schemaver/migrate/dataservice/sqlbase"
	"github.com/satishbabariya/schemaver/migrate/dataservice/sqlite"
	"github.com/satishbabariya/schemaver/migrate/plugin"
)

func main() {
	logger := plugin.NewLogger(os.Stderr, plugin.LevelFromEnv(os.Getenv(plugin.LogLevelEnv)))

	svc, err := sqlite.New(sqlbase.Options{Logger: logger})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	plugin.Serve(sqlite.Platform, svc)
}
