package client_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/adamwoolhether/asynchttp/client"
	"github.com/adamwoolhether/asynchttp/client/filter"
	"github.com/adamwoolhether/asynchttp/client/message"
	"github.com/adamwoolhether/asynchttp/client/realm"
)

func ExampleBuild() {
	c, err := client.Build(
		client.WithRequestTimeout(10*time.Second),
		client.WithUserAgent("example/1.0"),
	)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	defer c.Close()

	fmt.Println("client built")
	// Output: client built
}

func ExampleExecute() {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "pong")
	}))
	defer ts.Close()

	c, _ := client.Build(client.WithLogger(discard))
	defer c.Close()

	req, _ := message.NewBuilder(http.MethodGet, ts.URL+"/ping").Build()

	f := client.Execute(context.Background(), c, req, client.HandlerFuncs[string]{
		Completed: func(resp *message.Response) (string, error) {
			return fmt.Sprintf("%d %s", resp.StatusCode, resp.Text()), nil
		},
		Throwable: func(err error) { fmt.Println("failed:", err) },
	})

	out, err := f.Get(context.Background())
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	fmt.Println(out)
	// Output: 200 pong
}

func ExampleClient_ExecuteRequest_digest() {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			w.Header().Set("WWW-Authenticate", `Digest realm="example", nonce="abc123", qop="auth"`)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, "authenticated")
	}))
	defer ts.Close()

	c, _ := client.Build(client.WithLogger(discard))
	defer c.Close()

	creds, _ := realm.NewDigest("user", "secret").Build()
	req, _ := message.NewBuilder(http.MethodGet, ts.URL).Realm(creds).Build()

	resp, err := c.ExecuteRequest(context.Background(), req).Get(context.Background())
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	fmt.Println(resp.StatusCode, resp.Text())
	// Output: 200 authenticated
}

func ExampleWithResponseFilters() {
	var attempts int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, "ready")
	}))
	defer ts.Close()

	retryOnce := filter.ResponseFunc(func(_ context.Context, fc *filter.Context) (*filter.Context, error) {
		if fc.Response().StatusCode == http.StatusServiceUnavailable {
			return fc.Replay(fc.Request()), nil
		}
		return fc, nil
	})

	c, _ := client.Build(client.WithLogger(discard), client.WithResponseFilters(retryOnce))
	defer c.Close()

	req, _ := message.NewBuilder(http.MethodGet, ts.URL).Build()
	resp, err := c.ExecuteRequest(context.Background(), req).Get(context.Background())
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	fmt.Println(resp.Text())
	// Output: ready
}

func ExampleURL() {
	u := client.URL("https", "example.com", "/api/v1",
		client.WithPort(8443),
		client.WithQueryStrings(map[string]string{"key": "value"}),
	)

	fmt.Println(u.String())
	// Output: https://example.com:8443/api/v1?key=value
}

func ExampleRequest() {
	type payload struct {
		Name string `json:"name"`
	}

	u := client.URL("https", "example.com", "/users")

	req, err := client.Request(u, http.MethodPost,
		client.WithPayload(payload{Name: "alice"}),
		client.WithHeaders(map[string][]string{"X-Request-ID": {"abc123"}}),
	)
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	fmt.Println(req.Method(), req.URI().Path, req.Header("Content-Type"))
	// Output: POST /users application/json
}

func ExampleClient_Do() {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"status":"ok"}`)
	}))
	defer ts.Close()

	c, _ := client.Build(client.WithLogger(discard))
	defer c.Close()

	u, _ := url.Parse(ts.URL)
	req, _ := client.Request(u, http.MethodGet)

	var resp struct{ Status string }
	if err := c.Do(context.Background(), req, http.StatusOK, client.WithDestination(&resp)); err != nil {
		fmt.Println("error:", err)
		return
	}

	fmt.Println(resp.Status)
	// Output: ok
}

func ExampleClient_Download() {
	body := []byte("file contents")
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	}))
	defer ts.Close()

	dir, _ := os.MkdirTemp("", "example")
	defer os.RemoveAll(dir)

	c, _ := client.Build(client.WithLogger(discard))
	defer c.Close()

	u, _ := url.Parse(ts.URL)
	req, _ := c.Request(u, http.MethodGet)

	sum := sha256.Sum256(body)
	dest := filepath.Join(dir, "file.txt")

	res, err := c.Download(context.Background(), req, http.StatusOK, dest,
		client.WithChecksum(sha256.New(), hex.EncodeToString(sum[:])),
	)
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	data, _ := os.ReadFile(dest)
	fmt.Println(res.Written, string(data))
	// Output: 13 file contents
}
