// Package asynchttp exposes the asynchronous client builder.
package asynchttp

import (
	"github.com/adamwoolhether/asynchttp/client"
)

// NewClient instantiates a new *client.Client with the provided options.
// If not specified, the client dials its own pooled connections and uses
// client.DefaultConfig.
func NewClient(opts ...client.Option) (*client.Client, error) {
	return client.Build(opts...)
}
