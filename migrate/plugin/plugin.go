// Package plugin is the contract between the schemaver host and platform
// plugin binaries. A plugin is a separate executable serving one
// dataservice.DataService over hashicorp/go-plugin's net/rpc protocol, so its
// dependencies never share an address space with the host or other plugins.
//
// A plugin registers its platform explicitly:
//
//	func main() {
//	    svc, err := mydb.New(sqlbase.Options{Logger: plugin.NewLogger(os.Stderr, slog.LevelDebug)})
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    plugin.Serve("mydb", svc)
//	}
package plugin

import (
	"net/rpc"

	goplugin "github.com/hashicorp/go-plugin"

	"github.com/satishbabariya/schemaver/migrate/dataservice"
)

const (
	// ProtocolVersion is bumped on any incompatible change to the RPC surface.
	ProtocolVersion = 1

	// MagicCookieKey is the environment variable used for the handshake.
	MagicCookieKey = "SCHEMAVER_PLUGIN"

	// MagicCookieValue is the expected value for the handshake cookie.
	MagicCookieValue = "schemaver-dataservice-v1"
)

// Handshake is shared by the host and every plugin.
var Handshake = goplugin.HandshakeConfig{
	ProtocolVersion:  ProtocolVersion,
	MagicCookieKey:   MagicCookieKey,
	MagicCookieValue: MagicCookieValue,
}

// DataServicePlugin adapts a DataService to go-plugin. Impl is only set on
// the plugin side.
type DataServicePlugin struct {
	Impl dataservice.DataService
}

var _ goplugin.Plugin = (*DataServicePlugin)(nil)

// Server returns the RPC receiver that runs inside the plugin process.
func (p *DataServicePlugin) Server(*goplugin.MuxBroker) (interface{}, error) {
	return NewRPCServer(p.Impl), nil
}

// Client returns the host-side DataService proxy.
func (p *DataServicePlugin) Client(_ *goplugin.MuxBroker, c *rpc.Client) (interface{}, error) {
	return NewRPCClient(c)
}

// PluginSet returns the set a host uses to dispense platform.
func PluginSet(platform string) goplugin.PluginSet {
	return goplugin.PluginSet{platform: &DataServicePlugin{}}
}

// Serve runs svc as the plugin for platform and blocks until the host
// disconnects. It is the only entry point a plugin binary needs.
func Serve(platform string, svc dataservice.DataService) {
	goplugin.Serve(&goplugin.ServeConfig{
		HandshakeConfig: Handshake,
		Plugins: goplugin.PluginSet{
			platform: &DataServicePlugin{Impl: svc},
		},
	})
}
