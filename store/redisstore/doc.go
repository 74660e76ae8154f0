// Package redisstore is a statelessauth.PrincipalStore backed by Redis.
//
// # Layout
//
//	<prefix>p:<id>     principal record (binary, see Encode)
//	<prefix>e:<email>  principal id, the unique email index
//	<prefix>seq        id counter
//
// Creation runs as one Lua script so the email index and the record are
// written together or not at all.
//
// # Binary encoding
//
// Records carry a leading schema version byte. Decode rejects versions it
// does not know. New versions may append fields but never reinterpret old
// ones.
package redisstore
