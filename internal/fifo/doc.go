// Package fifo implements a named-pipe rendezvous protocol: clients write
// framed requests to a server's well-known channel, and each client reads
// its response from an ephemeral per-client channel named deterministically
// from its identity.
//
// Protocol rules:
//   - A request (header + client identity + payload) is written in a single
//     operation no larger than AtomicWriteLimit, so concurrent writers can
//     never interleave bytes inside one logical message.
//   - The server opens the well-known channel read-write so it never sees a
//     spurious end-of-stream when the last client closes its write end.
//   - Per-request failures (malformed frames, clients that vanish before
//     reading) are logged and counted, never fatal to the listener.
//   - The client removes its own channel after reading a response; the
//     server removes it when delivery fails. Channels of clients that
//     crashed before connecting leak until SweepStale collects them.
//
// Example Usage:
//
//	srv := fifo.NewServer("/tmp/svc.fifo", handler)
//	go srv.Listen(ctx)
//
//	client := fifo.NewClient("/tmp/svc.fifo")
//	resp, err := client.Request(ctx, []byte("payload"))
package fifo
