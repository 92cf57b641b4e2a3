/*
Package codec turns commits, trees and commit ids into bytes and back.

The id of a stored commit or tree is the hash of its serialized form, so every
Serializer must be deterministic: equal values always produce identical bytes.
The implementations here get there the same way. They encode through
fixed-layout wire structs (never Go maps), write tree nodes sorted by name
and commit parents sorted by their bytes, and store timestamps as unix
seconds, nanoseconds and a zone offset.

Three serializers are provided:

	CBOR    - Core Deterministic Encoding (RFC 8949 4.2). The default.
	JSON    - readable, larger.
	MsgPack - compact binary.

Bytes which cannot be decoded produce a *MalformedError.
*/
package codec
