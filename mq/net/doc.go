// Package mqnet is the moqu protocol over UDP.
//
// Server keeps ordered queue of published items for one subscriber.
// Client (subscriber) is expected to roam between networks, so it keeps
// announcing its address until server heartbeats arrive, and pulls items
// one at a time by acknowledging the last processed sequence (watermark).
// Server answers every watermark with the next retained item, if any.
//
// Every datagram is exactly one message sealed with pre-shared key.
// Engines are plain state machines stepped by single event loop goroutine;
// Server, Client and Publisher bind them to sockets.
package mqnet
