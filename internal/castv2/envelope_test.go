package castv2

import (
	"bytes"
	"io"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"
)

// TestEnvelopeRoundTrip verifies an encoded envelope decodes back to the
// same addressing and payload.
func TestEnvelopeRoundTrip(t *testing.T) {
	in := &envelope{
		SourceID:      "sender-0",
		DestinationID: "receiver-0",
		Namespace:     namespaceReceiver,
		Payload:       []byte(`{"type":"GET_STATUS","requestId":7}`),
	}

	out, err := decodeEnvelope(encodeEnvelope(in))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if out.SourceID != in.SourceID || out.DestinationID != in.DestinationID {
		t.Errorf("addressing: got %s -> %s", out.SourceID, out.DestinationID)
	}
	if out.Namespace != in.Namespace {
		t.Errorf("namespace: got %s", out.Namespace)
	}
	if !bytes.Equal(out.Payload, in.Payload) {
		t.Errorf("payload: got %q", out.Payload)
	}
	if out.Binary {
		t.Error("expected a string payload")
	}
}

// TestDecodeEnvelope_SkipsUnknownFields verifies forward compatibility
// with fields this sender never writes.
func TestDecodeEnvelope_SkipsUnknownFields(t *testing.T) {
	buf := encodeEnvelope(&envelope{
		SourceID:      "sender-0",
		DestinationID: "receiver-0",
		Namespace:     namespaceHeartbeat,
		Payload:       []byte(`{"type":"PING"}`),
	})
	buf = protowire.AppendTag(buf, 15, protowire.BytesType)
	buf = protowire.AppendString(buf, "future extension")
	buf = protowire.AppendTag(buf, 16, protowire.VarintType)
	buf = protowire.AppendVarint(buf, 42)

	out, err := decodeEnvelope(buf)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if out.Namespace != namespaceHeartbeat {
		t.Errorf("namespace: got %s", out.Namespace)
	}
}

// TestDecodeEnvelope_BinaryPayload verifies the binary payload field and
// type flag are honored.
func TestDecodeEnvelope_BinaryPayload(t *testing.T) {
	var buf []byte
	buf = protowire.AppendTag(buf, fieldNamespace, protowire.BytesType)
	buf = protowire.AppendString(buf, namespaceMedia)
	buf = protowire.AppendTag(buf, fieldPayloadType, protowire.VarintType)
	buf = protowire.AppendVarint(buf, payloadTypeBinary)
	buf = protowire.AppendTag(buf, fieldPayloadBinary, protowire.BytesType)
	buf = protowire.AppendBytes(buf, []byte{0x00, 0x01, 0x02})

	out, err := decodeEnvelope(buf)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !out.Binary {
		t.Error("expected a binary payload")
	}
	if !bytes.Equal(out.Payload, []byte{0x00, 0x01, 0x02}) {
		t.Errorf("payload: got %v", out.Payload)
	}
}

func TestDecodeEnvelope_Truncated(t *testing.T) {
	buf := encodeEnvelope(&envelope{Namespace: namespaceMedia, Payload: []byte("{}")})
	if _, err := decodeEnvelope(buf[:len(buf)-1]); err == nil {
		t.Fatal("expected an error")
	}
}

// TestFrameRoundTrip verifies the length prefix framing over a stream.
func TestFrameRoundTrip(t *testing.T) {
	var stream bytes.Buffer
	first := []byte(`{"type":"PING"}`)
	second := []byte(`{"type":"PONG"}`)
	if err := writeFrame(&stream, first); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := writeFrame(&stream, second); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	got, err := readFrame(&stream)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if !bytes.Equal(got, first) {
		t.Errorf("first frame: got %q", got)
	}
	got, err = readFrame(&stream)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if !bytes.Equal(got, second) {
		t.Errorf("second frame: got %q", got)
	}
}

func TestReadFrame_RejectsOversizedFrame(t *testing.T) {
	stream := bytes.NewReader([]byte{0xff, 0xff, 0xff, 0xff})
	if _, err := readFrame(stream); err == nil {
		t.Fatal("expected an error")
	}
}

func TestReadFrame_ShortStream(t *testing.T) {
	var stream bytes.Buffer
	if err := writeFrame(&stream, []byte(`{"type":"PING"}`)); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	truncated := stream.Bytes()[:stream.Len()-3]

	if _, err := readFrame(bytes.NewReader(truncated)); err != io.ErrUnexpectedEOF {
		t.Fatalf("expected ErrUnexpectedEOF, got %v", err)
	}
}
