// Package protocol defines the messages exchanged between a host and a
// running sandbox.
//
// Every message travels as a JSON [Envelope] of the form
//
//	{"type": "element-click", "pass": "3", "data": {...}}
//
// where pass identifies the compilation pass the sandbox document belongs
// to. [Decode] validates the payload and returns one of the typed
// variants; anything malformed or unknown yields a *[ProtocolError].
//
// A [Channel] carries envelopes for one pass. [WSChannel] runs over a
// gorilla/websocket connection; [Pipe] connects two in-process ends.
package protocol
