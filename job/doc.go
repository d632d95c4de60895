// Package job is the generic scatter/gather machinery every cluster job
// runs on: unknown-sessions discovery, threshold signing, and any other
// job that asks a set of peers one question and merges their answers.
//
// A job kind supplies two capability types. The [Coordinator] runs on the
// node that started the job: it builds the request for each peer, admits
// or refuses each answer, and merges the admitted answers. The
// [Responder] runs on every queried peer and answers from local state.
// They are separate types rather than one type with a mode switch, so a
// coordinator-only callback cannot be invoked on a responder instance.
//
// [Session] drives a coordinator: it sends the requests concurrently
// through a [Transport], tolerates peers that fail or time out, and
// computes the result from whatever answers were admitted, provided there
// are at least [Config.MinResponses] of them.
package job
