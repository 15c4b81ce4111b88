package discovery

import "testing"

func TestEncodeDecodeRequest(t *testing.T) {
	want := requestMsg{msgID: "abc-123", ttl: 3, origin: PeerAddress{Host: "192.168.1.5", Port: 51000}}

	got, err := decodeMessage(encodeRequest(want))
	if err != nil {
		t.Fatalf("decodeMessage returned error: %v", err)
	}
	if got.request == nil {
		t.Fatal("expected request message, got nil")
	}
	if *got.request != want {
		t.Fatalf("roundtrip mismatch: got %+v, want %+v", *got.request, want)
	}
}

func TestEncodeDecodeResponse(t *testing.T) {
	want := responseMsg{msgID: "xyz-789", ttl: 2, responder: PeerAddress{Host: "10.0.0.2", Port: 9999}}

	got, err := decodeMessage(encodeResponse(want))
	if err != nil {
		t.Fatalf("decodeMessage returned error: %v", err)
	}
	if got.response == nil {
		t.Fatal("expected response message, got nil")
	}
	if *got.response != want {
		t.Fatalf("roundtrip mismatch: got %+v, want %+v", *got.response, want)
	}
}

func TestEncodeDecodeHeartbeat(t *testing.T) {
	want := heartbeatMsg{sender: PeerAddress{Host: "172.16.0.4", Port: 8888}}

	got, err := decodeMessage(encodeHeartbeat(want))
	if err != nil {
		t.Fatalf("decodeMessage returned error: %v", err)
	}
	if got.heartbeat == nil {
		t.Fatal("expected heartbeat message, got nil")
	}
	if *got.heartbeat != want {
		t.Fatalf("roundtrip mismatch: got %+v, want %+v", *got.heartbeat, want)
	}
}

func TestDecodeMalformed(t *testing.T) {
	cases := []string{
		"",
		"UNKNOWN_KIND;foo;bar",
		"DISCOVER_P2P;only;three",
		"DISCOVER_P2P;id;notanumber;127.0.0.1;9000",
		"DISCOVER_P2P;id;3;not-an-ip;9000",
		"P2P_HEARTBEAT;127.0.0.1;notaport",
	}

	for _, raw := range cases {
		if _, err := decodeMessage(raw); err == nil {
			t.Errorf("decodeMessage(%q): expected error, got nil", raw)
		}
	}
}
