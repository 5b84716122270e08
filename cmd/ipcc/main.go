//go:build unix

// Command ipcc sends one request to a running ipcd daemon and prints the
// response.
//
// Usage:
//
//	ipcc -fifo /tmp/ipckit.fifo 'ls -l /'
//	echo 'uname -a' | ipcc
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/GriffinCanCode/ipckit/internal/fifo"
	"github.com/GriffinCanCode/ipckit/internal/infrastructure/config"
)

func main() {
	fifoPath := flag.String("fifo", "", "Well-known channel path (overrides IPC_FIFO_PATH)")
	clientID := flag.String("id", "", "Client identity (defaults to pid)")
	timeout := flag.Duration("timeout", 30*time.Second, "How long to wait for the response")
	flag.Parse()

	cfg := config.LoadOrDefault()
	if *fifoPath != "" {
		cfg.Fifo.Path = *fifoPath
	}

	payload := strings.Join(flag.Args(), " ")
	if payload == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ipcc: read stdin: %v\n", err)
			os.Exit(1)
		}
		payload = strings.TrimSpace(string(data))
	}
	if payload == "" {
		fmt.Fprintln(os.Stderr, "ipcc: nothing to send")
		os.Exit(2)
	}

	var opts []fifo.ClientOption
	if *clientID != "" {
		opts = append(opts, fifo.WithClientID(*clientID))
	}
	client := fifo.NewClient(cfg.Fifo.Path, opts...)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	resp, err := client.Request(ctx, []byte(payload))
	if err != nil {
		fmt.Fprintf(os.Stderr, "ipcc: %v\n", err)
		os.Exit(1)
	}
	os.Stdout.Write(resp)
}
