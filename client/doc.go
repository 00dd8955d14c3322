// Package client provides an asynchronous HTTP/1.1 client engine.
//
// # Building a Client
//
// Use [Build] to create a [Client] with functional options:
//
//	c, err := client.Build(
//		client.WithRequestTimeout(10 * time.Second),
//		client.WithUserAgent("myapp/1.0"),
//	)
//	defer c.Close()
//
// # Executing Requests
//
// [Execute] starts a request and returns a [Future] right away. Exactly one
// of the handler's methods runs once the request, with every auth replay
// and redirect, has resolved:
//
//	req, err := message.NewBuilder(http.MethodGet, "https://api.example.com/v1/items").Build()
//	f := client.Execute(ctx, c, req, client.HandlerFuncs[int]{
//		Completed: func(resp *message.Response) (int, error) { return resp.StatusCode, nil },
//	})
//	code, err := f.Get(ctx)
//
// [Client.ExecuteRequest] resolves to the final [message.Response].
// [Future.Cancel] ends a request without invoking its handler.
//
// # Filters
//
// Request filters run once before the first attempt and may replace the
// request or the handler. Response filters run after every response and
// may ask for a replay. See [github.com/adamwoolhether/asynchttp/client/filter].
//
// # Authentication
//
// A request carrying a [realm.Realm] answers 401 challenges, preferring
// Digest over Basic; [WithProxyRealm] answers 407 challenges from a proxy.
//
// # Synchronous helpers
//
// Construct a [URL] and [Request], then execute with [Client.Do]:
//
//	u := client.URL("https", "api.example.com", "/v1/resource")
//	req, err := client.Request(u, http.MethodGet)
//	err = c.Do(ctx, req, http.StatusOK, client.WithDestination(&result))
//
// # Downloading Files
//
// Stream a response body directly to disk with optional checksum
// verification, progress reporting and resume:
//
//	res, err := c.Download(ctx, req, http.StatusOK, "/tmp/file.bin",
//		client.WithChecksum(sha256.New(), expectedHex),
//		client.WithResume(),
//	)
//
// [Client.DownloadAsync] returns a [Future] instead of waiting.
package client
