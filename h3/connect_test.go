package h3

import (
	"bytes"
	"net/url"
	"testing"

	"github.com/quic-go/qpack"
)

func TestConnectRequestRoundTrip(t *testing.T) {
	u, _ := url.Parse("https://example.com/wt/chat")
	req := &ConnectRequest{
		URL:       u,
		Protocols: []string{"chat.v1", "chat.v2"},
		Origin:    "https://client.example",
	}

	var buf bytes.Buffer
	if err := req.Write(&buf); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := ReadConnectRequest(&buf)
	if err != nil {
		t.Fatalf("ReadConnectRequest: %v", err)
	}
	if got.URL.String() != u.String() {
		t.Fatalf("got URL %q, want %q", got.URL, u)
	}
	if got.Origin != req.Origin {
		t.Fatalf("got origin %q, want %q", got.Origin, req.Origin)
	}
	if len(got.Protocols) != 2 || got.Protocols[0] != "chat.v1" || got.Protocols[1] != "chat.v2" {
		t.Fatalf("got protocols %v, want %v", got.Protocols, req.Protocols)
	}
}

func TestConnectRequestWithoutProtocolsOrOrigin(t *testing.T) {
	u, _ := url.Parse("https://example.com/wt")
	req := &ConnectRequest{URL: u}

	var buf bytes.Buffer
	if err := req.Write(&buf); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := ReadConnectRequest(&buf)
	if err != nil {
		t.Fatalf("ReadConnectRequest: %v", err)
	}
	if len(got.Protocols) != 0 {
		t.Fatalf("got protocols %v, want none", got.Protocols)
	}
	if got.Origin != "" {
		t.Fatalf("got origin %q, want empty", got.Origin)
	}
}

func TestConnectResponseRoundTrip(t *testing.T) {
	resp := &ConnectResponse{Status: 200, Protocol: "chat.v1"}

	var buf bytes.Buffer
	if err := resp.Write(&buf); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := ReadConnectResponse(&buf)
	if err != nil {
		t.Fatalf("ReadConnectResponse: %v", err)
	}
	if got.Status != 200 || got.Protocol != "chat.v1" {
		t.Fatalf("got %+v, want %+v", got, resp)
	}
}

func TestReadConnectRequestRejectsWrongMethod(t *testing.T) {
	// Hand-build a HEADERS frame with :method=GET instead of CONNECT.
	var headers bytes.Buffer
	enc := qpack.NewEncoder(&headers)
	enc.WriteField(qpack.HeaderField{Name: ":method", Value: "GET"})
	enc.WriteField(qpack.HeaderField{Name: ":protocol", Value: "webtransport"})
	enc.WriteField(qpack.HeaderField{Name: ":scheme", Value: "https"})
	enc.WriteField(qpack.HeaderField{Name: ":authority", Value: "example.com"})
	enc.WriteField(qpack.HeaderField{Name: ":path", Value: "/wt"})

	f := Frame{Type: FRAME_HEADERS, Length: uint64(headers.Len()), Data: headers.Bytes()}
	var buf bytes.Buffer
	if _, err := f.Write(&buf); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if _, err := ReadConnectRequest(&buf); err == nil {
		t.Fatalf("expected an error for a non-CONNECT method")
	}
}
