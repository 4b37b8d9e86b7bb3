// Package registry tracks all currently-open sessions and broadcasts
// load-status events to them with best-effort delivery: a failed send
// removes the connection from the set and never affects other recipients
// or the caller.
package registry
