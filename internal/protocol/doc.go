// Package protocol implements the two wire formats of the server.
//
// Control frames are UTF-8 text lines: fields joined by '|' and terminated by
// '\n'. The first field names the command. The last field of a command may
// itself contain '|', so parsing splits on a bounded number of separators.
//
// Media frames are single datagrams laid out as
//
//	[1-byte header length][header "sender|receiver"][opaque payload]
//
// and are relayed verbatim.
package protocol
