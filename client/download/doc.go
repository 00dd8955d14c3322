// Package download streams HTTP response bodies to disk with optional
// checksum validation, progress reporting and resume.
//
// # Resumable downloads
//
// [Handler] is a completion handler for the client's execution engine.
// Before the first attempt the engine calls [Handler.AdjustRequestRange];
// with [WithResume] the handler resumes from the size of the destination's
// ".part" file and the engine sends "Range: bytes=<offset>-":
//
//	h, err := download.New("/tmp/file.bin", logger,
//		download.WithResume(),
//		download.WithChecksum(sha256.New(), expectedHex),
//		download.WithProgress(),
//	)
//	f := client.Execute(ctx, c, req, h)
//	res, err := f.Get(ctx)
//
// A 206 response is appended to the partial file, a 200 replaces it, and a
// 416 whose total matches the partial size completes the download as is.
// Without WithResume the body goes to a temp file that is renamed on
// success and removed on failure.
//
// Most callers should use
// [github.com/adamwoolhether/asynchttp/client.Client.Download], which
// builds the Handler and checks the response status.
package download
