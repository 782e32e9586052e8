package main

import (
	"fmt"
	"io"
	"net"
	"os"

	jsoniter "github.com/json-iterator/go"

	rhema "github.com/mverlaine/rhema/core"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func main() {
	sockPath := os.Getenv("RHEMA_SOCK")
	if sockPath == "" {
		sockPath = "/tmp/rhema.sock"
	}

	// Read JSON from stdin
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read stdin: %v\n", err)
		os.Exit(1)
	}

	var msg map[string]any
	if err := json.Unmarshal(data, &msg); err != nil {
		fmt.Fprintf(os.Stderr, "parse JSON: %v\n", err)
		os.Exit(1)
	}

	// Add id if missing
	if _, ok := msg["id"]; !ok {
		msg["id"] = rhema.NextID()
	}

	// Connect to daemon
	conn, err := net.Dial("unix", sockPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	// Send request
	if err := rhema.WriteMsg(conn, msg); err != nil {
		fmt.Fprintf(os.Stderr, "send: %v\n", err)
		os.Exit(1)
	}

	// Read response
	resp, err := rhema.ReadMsg(conn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "receive: %v\n", err)
		os.Exit(1)
	}

	// Print response
	out, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "format response: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}
