// Package envelope carries serialized results across the boundary.
//
// An Envelope is a payload buffer plus a ticket. The ticket names a resource
// the host allocated for this call (for example a callback frame it keeps
// alive); after the bridge has read the payload it asks the host, through a
// Releaser, to free that resource. Tickets are consumed at most once.
//
//	env, err := envelope.Pack(arena, envelope.JSON, result)
//	...
//	out, err := envelope.Unpack[Reply](arena, envelope.JSON, registry, env)
//
// Payloads are encoded with a Codec. JSON is the host contract; Msgpack is a
// compact alternative for hosts that speak it. Both produce the same shapes:
// Result serializes as {"Ok": v} or {"Err": e} and Hex as a base16 string.
package envelope
