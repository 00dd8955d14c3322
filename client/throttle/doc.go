// Package throttle provides a request filter that rate-limits outbound
// requests using a token-bucket algorithm from [golang.org/x/time/rate].
//
// # Usage
//
// Register the filter on a client, or let
// [github.com/adamwoolhether/asynchttp/client.WithThrottle] do it:
//
//	f, err := throttle.New(
//		throttle.Config{RPS: 10, Burst: 5},
//		func() *slog.Logger { return slog.Default() },
//	)
//	c, err := client.Build(client.WithRequestFilters(f))
//
// When the rate limit is exceeded, requests wait in the pre-filter stage
// until a token becomes available or the request context ends; no
// connection is leased while waiting.
package throttle
