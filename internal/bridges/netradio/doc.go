// Package netradio implements the network-receiver bridge for Radiolink.
//
// This package maintains a live mirror of one network audio receiver's state
// over the receiver's line-oriented UDP control protocol. It reconciles three
// independent information sources - poll responses, unsolicited notifications,
// and broadcast discovery replies - into a single consistent set of readings
// without a connection-oriented handshake.
//
// # Architecture
//
// The bridge sits between the receiver's UDP protocol and Radiolink's MQTT
// surface:
//
//	┌─────────────────┐          ┌─────────────────┐
//	│    Radiolink    │   MQTT   │ NetRadio Bridge │    UDP
//	│    consumers    │◄────────►│   (this pkg)    │◄────────► Receiver
//	└─────────────────┘          └─────────────────┘
//
// # Key Responsibilities
//
//   - Encode and parse the key:value datagram format
//   - Send unicast commands and broadcast discovery requests
//   - Track reachability through a guarded, non-regressing state machine
//   - Detect reading changes and batch downstream notifications
//   - Poll adaptively: discovery while offline, status or full refresh while up
//   - Publish state, health, and command acknowledgments over MQTT
//
// # Wire Protocol
//
// Datagrams are newline-delimited text (CR/LF tolerant). An outbound frame is
//
//	COMMAND:<verb>
//	<param-line>...
//	ID:<identity>
//	<blank line>
//
// and a processable reply carries RESPONSE:ACK plus a recognised COMMAND
// verb. Replies to GET/SET/PLAY are correlated by the identity token echoed
// in the payload; NOTIFICATION and DISCOVER payloads are correlated by the
// device's IP or advertised name instead. Anything else on the shared
// broadcast medium is dropped silently.
//
// # Concurrency
//
// All device record, status, and reading mutation happens on a single engine
// goroutine driven by a select loop over inbound datagrams, the poll timer,
// and marshalled external calls. Exported methods are safe for concurrent use;
// they post work onto that loop and wait for the result.
package netradio
