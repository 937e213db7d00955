/*
flag Package set up cli flags shared across services

Usage:

	Flags listed in this package are shared across boundaries and service-agnostic
	For service dependent flags please define in their respective package
*/

package flag

import (
	"flag"
)

const (
	APIServer  = "api_server"
	FeedClient = "feed_client"
)

var (
	IsDevelopment bool
	ServiceName   string
	ByPassAuth    bool
)

func init() {
	flag.BoolVar(&IsDevelopment, "dev", true, "set to true if the current run is for development. default value is true")
	flag.StringVar(&ServiceName, "service", APIServer, "'api_server' or 'feed_client'")
	flag.BoolVar(&ByPassAuth, "no_auth", false, "set to true to skip token validation, local debugging only")
}

// Parse must be called from main after all packages had the chance to register
// their flags. Calling flag.Parse from init breaks `go test` flag handling.
func Parse() {
	flag.Parse()
}
