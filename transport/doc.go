// Package transport carries job requests between key servers over HTTP.
//
// A request for job kind K is POSTed to <peer>/jobs/K. The responder
// answers 200 with its response, or 409 with an optional payload when it
// refuses. Bodies above a size threshold are zstd compressed and marked
// with Content-Encoding: zstd. Payload formats are supplied per job as a
// [Codec].
package transport
