// Package host contains the host half of the world protocol: file
// providers and a Responder that turns them into world callbacks
// answering with ticketed envelopes.
package host
