package server

import (
	"bufio"
	"bytes"
	"net"
)

type protocolType int

const (
	protocolTCP protocolType = iota
	protocolHTTP
)

// httpMethodPrefixes are the first four bytes of every HTTP request line.
// A framed TCP event never starts with one: its second byte is a protobuf tag.
var httpMethodPrefixes = [][]byte{
	[]byte("GET "),
	[]byte("POST"),
	[]byte("PUT "),
	[]byte("HEAD"),
	[]byte("OPTI"),
	[]byte("PATC"),
	[]byte("DELE"),
	[]byte("CONN"),
}

// detectProtocol peeks at the first bytes to determine protocol type
func detectProtocol(conn net.Conn) (protocolType, *bufio.Reader, error) {
	reader := bufio.NewReader(conn)

	peek, err := reader.Peek(4)
	if err != nil {
		return protocolTCP, reader, err
	}

	for _, prefix := range httpMethodPrefixes {
		if bytes.HasPrefix(peek, prefix) {
			return protocolHTTP, reader, nil
		}
	}

	// Default to TCP for binary data
	return protocolTCP, reader, nil
}
