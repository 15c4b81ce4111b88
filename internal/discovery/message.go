package discovery

import (
	"errors"
	"strconv"
	"strings"
)

// Message kinds on the discovery wire. All messages are ASCII strings
// with ';'-separated fields, packet size <= 1024 bytes.
const (
	kindRequest  = "DISCOVER_P2P"
	kindResponse = "P2P_FILE_SHARING"
	kindHeartbeat = "P2P_HEARTBEAT"
)

var errMalformedMessage = errors.New("discovery: malformed message")

type requestMsg struct {
	msgID  string
	ttl    int
	origin PeerAddress
}

type responseMsg struct {
	msgID     string
	ttl       int
	responder PeerAddress
}

type heartbeatMsg struct {
	sender PeerAddress
}

func encodeRequest(m requestMsg) string {
	return strings.Join([]string{
		kindRequest,
		m.msgID,
		strconv.Itoa(m.ttl),
		m.origin.Host,
		strconv.Itoa(int(m.origin.Port)),
	}, ";")
}

func encodeResponse(m responseMsg) string {
	return strings.Join([]string{
		kindResponse,
		m.msgID,
		strconv.Itoa(m.ttl),
		m.responder.Host,
		strconv.Itoa(int(m.responder.Port)),
	}, ";")
}

func encodeHeartbeat(m heartbeatMsg) string {
	return strings.Join([]string{
		kindHeartbeat,
		m.sender.Host,
		strconv.Itoa(int(m.sender.Port)),
	}, ";")
}

// decodedMessage is exactly one of the three *Msg types, selected by
// classifying the first field.
type decodedMessage struct {
	request   *requestMsg
	response  *responseMsg
	heartbeat *heartbeatMsg
}

func decodeMessage(raw string) (decodedMessage, error) {
	fields := strings.Split(strings.TrimSpace(raw), ";")
	if len(fields) == 0 {
		return decodedMessage{}, errMalformedMessage
	}

	switch fields[0] {
	case kindRequest:
		if len(fields) != 5 {
			return decodedMessage{}, errMalformedMessage
		}
		ttl, err := strconv.Atoi(fields[2])
		if err != nil {
			return decodedMessage{}, errMalformedMessage
		}
		port, err := strconv.ParseUint(fields[4], 10, 16)
		if err != nil {
			return decodedMessage{}, errMalformedMessage
		}
		origin, err := newPeerAddress(fields[3], port)
		if err != nil {
			return decodedMessage{}, err
		}
		return decodedMessage{request: &requestMsg{
			msgID: fields[1], ttl: ttl, origin: origin,
		}}, nil

	case kindResponse:
		if len(fields) != 5 {
			return decodedMessage{}, errMalformedMessage
		}
		ttl, err := strconv.Atoi(fields[2])
		if err != nil {
			return decodedMessage{}, errMalformedMessage
		}
		port, err := strconv.ParseUint(fields[4], 10, 16)
		if err != nil {
			return decodedMessage{}, errMalformedMessage
		}
		responder, err := newPeerAddress(fields[3], port)
		if err != nil {
			return decodedMessage{}, err
		}
		return decodedMessage{response: &responseMsg{
			msgID: fields[1], ttl: ttl, responder: responder,
		}}, nil

	case kindHeartbeat:
		if len(fields) != 3 {
			return decodedMessage{}, errMalformedMessage
		}
		port, err := strconv.ParseUint(fields[2], 10, 16)
		if err != nil {
			return decodedMessage{}, errMalformedMessage
		}
		sender, err := newPeerAddress(fields[1], port)
		if err != nil {
			return decodedMessage{}, err
		}
		return decodedMessage{heartbeat: &heartbeatMsg{sender: sender}}, nil

	default:
		return decodedMessage{}, errMalformedMessage
	}
}
