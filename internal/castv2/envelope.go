// Package castv2 implements the wire link to a cast receiver: a TLS
// connection carrying length-framed protobuf envelopes whose payloads are
// JSON messages, multiplexed over namespaced channels.
package castv2

import (
	"encoding/binary"
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/protowire"
)

// Channel namespaces spoken by this sender.
const (
	namespaceConnection = "urn:x-cast:com.google.cast.tp.connection"
	namespaceHeartbeat  = "urn:x-cast:com.google.cast.tp.heartbeat"
	namespaceReceiver   = "urn:x-cast:com.google.cast.receiver"
	namespaceMedia      = "urn:x-cast:com.google.cast.media"
)

// CastMessage protobuf schema. The envelope never changes, so it is
// encoded directly with protowire instead of carrying generated code.
const (
	fieldProtocolVersion = 1
	fieldSourceID        = 2
	fieldDestinationID   = 3
	fieldNamespace       = 4
	fieldPayloadType     = 5
	fieldPayloadUTF8     = 6
	fieldPayloadBinary   = 7

	protocolVersion   = 0 // CASTV2_1_0
	payloadTypeString = 0
	payloadTypeBinary = 1
)

// maxFrameSize guards against nonsense length prefixes.
const maxFrameSize = 1 << 20

// envelope is one decoded CastMessage.
type envelope struct {
	SourceID      string
	DestinationID string
	Namespace     string
	Payload       []byte
	Binary        bool
}

func encodeEnvelope(e *envelope) []byte {
	var buf []byte
	buf = protowire.AppendTag(buf, fieldProtocolVersion, protowire.VarintType)
	buf = protowire.AppendVarint(buf, protocolVersion)
	buf = protowire.AppendTag(buf, fieldSourceID, protowire.BytesType)
	buf = protowire.AppendString(buf, e.SourceID)
	buf = protowire.AppendTag(buf, fieldDestinationID, protowire.BytesType)
	buf = protowire.AppendString(buf, e.DestinationID)
	buf = protowire.AppendTag(buf, fieldNamespace, protowire.BytesType)
	buf = protowire.AppendString(buf, e.Namespace)
	buf = protowire.AppendTag(buf, fieldPayloadType, protowire.VarintType)
	buf = protowire.AppendVarint(buf, payloadTypeString)
	buf = protowire.AppendTag(buf, fieldPayloadUTF8, protowire.BytesType)
	buf = protowire.AppendBytes(buf, e.Payload)
	return buf
}

func decodeEnvelope(data []byte) (*envelope, error) {
	var e envelope
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		data = data[n:]
		switch {
		case num == fieldSourceID && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			e.SourceID = v
			data = data[n:]
		case num == fieldDestinationID && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			e.DestinationID = v
			data = data[n:]
		case num == fieldNamespace && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			e.Namespace = v
			data = data[n:]
		case num == fieldPayloadType && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			e.Binary = v == payloadTypeBinary
			data = data[n:]
		case num == fieldPayloadUTF8 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			e.Payload = v
			data = data[n:]
		case num == fieldPayloadBinary && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			e.Payload = v
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			data = data[n:]
		}
	}
	return &e, nil
}

// writeFrame prefixes body with its big-endian length.
func writeFrame(w io.Writer, body []byte) error {
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(body)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}

// readFrame reads one length-prefixed frame.
func readFrame(r io.Reader) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	size := binary.BigEndian.Uint32(hdr[:])
	if size > maxFrameSize {
		return nil, fmt.Errorf("frame of %d bytes exceeds limit", size)
	}
	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return body, nil
}
