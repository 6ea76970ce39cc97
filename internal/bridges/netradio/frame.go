package netradio

import (
	"fmt"
	"strings"
)

// Reserved wire keys used by the receiver's control protocol.
const (
	// KeyCommand carries the protocol verb (GET, SET, PLAY, ...).
	KeyCommand = "COMMAND"

	// KeyResponse carries the acknowledgment marker on inbound frames.
	KeyResponse = "RESPONSE"

	// KeyIdentity carries the identity token that correlates replies to
	// GET/SET/PLAY requests.
	KeyIdentity = "ID"

	// KeyBareLine is the reserved key under which a line without a colon
	// separator is stored.
	KeyBareLine = "_"

	// AckToken is the RESPONSE value marking a processable reply.
	AckToken = "ACK"
)

// maxDatagramSize is the largest inbound payload the bridge reads. The
// receiver never emits frames near this size; anything longer is truncated
// by the transport read buffer.
const maxDatagramSize = 4096

// Frame is the parsed form of one UDP payload: an ordered field→value
// mapping.
//
// Duplicate keys are legitimate on the wire (the receiver repeats field
// names for list-like data such as station presets) and are preserved by
// appending a numeric suffix in order of appearance: the second PRESET line
// becomes PRESET_1, the third PRESET_2, and so on.
type Frame struct {
	fields map[string]string
	order  []string
}

// ParseFrame parses a raw datagram into a Frame.
//
// The payload is newline-delimited text, CR/LF tolerant. Each line is either
// `key:value` (split at the first colon, so values may contain colons) or a
// bare line stored under the reserved key "_". Empty lines are skipped.
// Malformed input never produces an error; unparseable content simply does
// not survive the field checks performed by the dispatcher.
func ParseFrame(payload []byte) Frame {
	f := Frame{fields: make(map[string]string)}

	for _, line := range strings.Split(string(payload), "\n") {
		line = strings.TrimSuffix(line, "\r")
		if line == "" {
			continue
		}

		key, value, found := strings.Cut(line, ":")
		if !found || key == "" {
			f.add(KeyBareLine, line)
			continue
		}
		f.add(key, value)
	}

	return f
}

// add stores a field, suffixing the key if it is already present.
func (f *Frame) add(key, value string) {
	if _, exists := f.fields[key]; exists {
		for i := 1; ; i++ {
			suffixed := fmt.Sprintf("%s_%d", key, i)
			if _, taken := f.fields[suffixed]; !taken {
				key = suffixed
				break
			}
		}
	}
	f.fields[key] = value
	f.order = append(f.order, key)
}

// BuildFrame serialises an outbound command frame.
//
// The output framing is fixed and must be reproduced exactly for
// compatibility with the receiver:
//
//	COMMAND:<verb>
//	<param-line>...
//	ID:<identity>
//	<blank line>
//
// Parameter lines are emitted verbatim; callers pass either bare block names
// (GET) or `FIELD:value` pairs (SET, PLAY).
func BuildFrame(verb string, params []string, identity string) []byte {
	var b strings.Builder
	b.WriteString(KeyCommand)
	b.WriteByte(':')
	b.WriteString(verb)
	b.WriteByte('\n')

	for _, p := range params {
		b.WriteString(p)
		b.WriteByte('\n')
	}

	b.WriteString(KeyIdentity)
	b.WriteByte(':')
	b.WriteString(identity)
	b.WriteString("\n\n")

	return []byte(b.String())
}

// Get returns the value for a key and whether it was present.
func (f Frame) Get(key string) (string, bool) {
	v, ok := f.fields[key]
	return v, ok
}

// Value returns the value for a key, or "" when absent.
func (f Frame) Value(key string) string {
	return f.fields[key]
}

// Has reports whether the key was present in the payload.
func (f Frame) Has(key string) bool {
	_, ok := f.fields[key]
	return ok
}

// Keys returns all stored keys in order of appearance, including any
// numeric suffixes assigned to duplicates.
func (f Frame) Keys() []string {
	keys := make([]string, len(f.order))
	copy(keys, f.order)
	return keys
}

// Len returns the number of stored fields.
func (f Frame) Len() int {
	return len(f.order)
}

// Verb returns the COMMAND value, or "" when absent.
func (f Frame) Verb() string {
	return f.fields[KeyCommand]
}

// Identity returns the ID value, or "" when absent.
func (f Frame) Identity() string {
	return f.fields[KeyIdentity]
}

// IsAck reports whether the frame carries the RESPONSE:ACK marker that
// makes it processable.
func (f Frame) IsAck() bool {
	return f.fields[KeyResponse] == AckToken
}

// String returns a compact human-readable representation for logging.
func (f Frame) String() string {
	parts := make([]string, 0, len(f.order))
	for _, k := range f.order {
		parts = append(parts, k+"="+f.fields[k])
	}
	return "Frame{" + strings.Join(parts, " ") + "}"
}
