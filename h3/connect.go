package h3

import (
	"bytes"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/quic-go/qpack"
)

// ConnectRequest is the extended-CONNECT request that opens a WebTransport
// session, encoded as a QPACK HEADERS frame on a bidirectional stream.
type ConnectRequest struct {
	URL *url.URL
	// Protocols lists the subprotocols the client is willing to speak, sent
	// as the "wt-available-protocols" header. May be empty.
	Protocols []string
	// Origin is the value of the request's "origin" header, if any.
	Origin string
}

const headerAvailableProtocols = "wt-available-protocols"
const headerProtocol = "wt-protocol"
const headerOrigin = "origin"

// Write QPACK-encodes and writes the request as an HTTP/3 HEADERS frame.
func (r *ConnectRequest) Write(w io.Writer) error {
	var headers bytes.Buffer
	enc := qpack.NewEncoder(&headers)
	enc.WriteField(qpack.HeaderField{Name: ":method", Value: "CONNECT"})
	enc.WriteField(qpack.HeaderField{Name: ":protocol", Value: "webtransport"})
	enc.WriteField(qpack.HeaderField{Name: ":scheme", Value: "https"})
	enc.WriteField(qpack.HeaderField{Name: ":authority", Value: r.URL.Host})
	enc.WriteField(qpack.HeaderField{Name: ":path", Value: requestURI(r.URL)})
	if len(r.Protocols) > 0 {
		enc.WriteField(qpack.HeaderField{Name: headerAvailableProtocols, Value: strings.Join(r.Protocols, ",")})
	}
	if r.Origin != "" {
		enc.WriteField(qpack.HeaderField{Name: headerOrigin, Value: r.Origin})
	}

	f := Frame{Type: FRAME_HEADERS, Length: uint64(headers.Len()), Data: headers.Bytes()}
	_, err := f.Write(w)
	return err
}

// ReadConnectRequest reads and QPACK-decodes an extended-CONNECT request.
func ReadConnectRequest(r io.Reader) (*ConnectRequest, error) {
	f := Frame{}
	if err := f.Read(r); err != nil {
		return nil, err
	}
	if f.Type != FRAME_HEADERS {
		return nil, fmt.Errorf("h3: expected HEADERS frame, got type %#x", f.Type)
	}

	dec := qpack.NewDecoder(nil)
	hfs, err := dec.DecodeFull(f.Data)
	if err != nil {
		return nil, fmt.Errorf("h3: decoding CONNECT headers: %w", err)
	}

	var method, protocol, scheme, authority, path, available, origin string
	for _, hf := range hfs {
		switch hf.Name {
		case ":method":
			method = hf.Value
		case ":protocol":
			protocol = hf.Value
		case ":scheme":
			scheme = hf.Value
		case ":authority":
			authority = hf.Value
		case ":path":
			path = hf.Value
		case headerAvailableProtocols:
			available = hf.Value
		case headerOrigin:
			origin = hf.Value
		}
	}

	if method != "CONNECT" {
		return nil, fmt.Errorf("h3: expected :method=CONNECT, got %q", method)
	}
	if protocol != "webtransport" {
		return nil, fmt.Errorf("h3: expected :protocol=webtransport, got %q", protocol)
	}
	if authority == "" || path == "" {
		return nil, fmt.Errorf("h3: :authority and :path must not be empty")
	}
	if scheme == "" {
		scheme = "https"
	}

	u, err := url.ParseRequestURI(scheme + "://" + authority + path)
	if err != nil {
		return nil, fmt.Errorf("h3: invalid CONNECT target: %w", err)
	}

	req := &ConnectRequest{URL: u, Origin: origin}
	if available != "" {
		req.Protocols = strings.Split(available, ",")
	}
	return req, nil
}

// ConnectResponse is the server's answer to a ConnectRequest.
type ConnectResponse struct {
	Status int
	// Protocol is the subprotocol the server selected, or empty if none.
	Protocol string
}

// Write QPACK-encodes and writes the response as an HTTP/3 HEADERS frame.
func (r *ConnectResponse) Write(w io.Writer) error {
	var headers bytes.Buffer
	enc := qpack.NewEncoder(&headers)
	enc.WriteField(qpack.HeaderField{Name: ":status", Value: fmt.Sprintf("%d", r.Status)})
	if r.Protocol != "" {
		enc.WriteField(qpack.HeaderField{Name: headerProtocol, Value: r.Protocol})
	}

	f := Frame{Type: FRAME_HEADERS, Length: uint64(headers.Len()), Data: headers.Bytes()}
	_, err := f.Write(w)
	return err
}

// ReadConnectResponse reads and QPACK-decodes a ConnectResponse.
func ReadConnectResponse(r io.Reader) (*ConnectResponse, error) {
	f := Frame{}
	if err := f.Read(r); err != nil {
		return nil, err
	}
	if f.Type != FRAME_HEADERS {
		return nil, fmt.Errorf("h3: expected HEADERS frame, got type %#x", f.Type)
	}

	dec := qpack.NewDecoder(nil)
	hfs, err := dec.DecodeFull(f.Data)
	if err != nil {
		return nil, fmt.Errorf("h3: decoding CONNECT response headers: %w", err)
	}

	resp := &ConnectResponse{}
	for _, hf := range hfs {
		switch hf.Name {
		case ":status":
			var status int
			if _, err := fmt.Sscanf(hf.Value, "%d", &status); err != nil {
				return nil, fmt.Errorf("h3: invalid :status %q: %w", hf.Value, err)
			}
			resp.Status = status
		case headerProtocol:
			resp.Protocol = hf.Value
		}
	}
	return resp, nil
}

func requestURI(u *url.URL) string {
	if u.RawQuery == "" {
		return u.Path
	}
	return u.Path + "?" + u.RawQuery
}
