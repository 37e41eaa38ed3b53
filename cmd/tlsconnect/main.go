// tlsconnect dials a raw TCP stream, performs a TLS handshake over it
// using a tlsconnector.Connector, and prints the resulting state.
//
// Usage:
//
//   tlsconnect [-auth-mode required|optional|none] [-ca-bundle <path>]
//              [-sni <name>] [-json] -address <host:port>
//
// With -json we emit the events as JSONL on the stdout; otherwise
// we log them on the stderr.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net"
	"os"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/m-lab/go/rtx"
	"github.com/ooni/tlsadapter/cmd/common"
	"github.com/ooni/tlsadapter/handlers"
	"github.com/ooni/tlsadapter/handlers/logger"
	"github.com/ooni/tlsadapter/model"
	"github.com/ooni/tlsadapter/tlsconnector"
)

var (
	flagAddress = flag.String("address", "example.com:443", "Address to connect to")
	flagJSON    = flag.Bool("json", false, "Emit events as JSONL")
)

var stdout io.Writer = os.Stdout

type result struct {
	ConnectionState model.TLSConnectionState
	VerifyError     string `json:",omitempty"`
}

func main() {
	flag.Parse()
	log.SetHandler(cli.Default)
	log.SetLevel(log.DebugLevel)
	rtx.Must(mainfunc(), "mainfunc failed")
}

func mainfunc() error {
	if *common.FlagHelp {
		flag.CommandLine.SetOutput(stdout)
		fmt.Fprintf(stdout, "Usage: tlsconnect [flags] -address <host:port>\n")
		flag.PrintDefaults()
		return nil
	}
	mode, err := common.AuthMode()
	if err != nil {
		return err
	}
	connector, err := tlsconnector.NewWithConfig(mode, nil, common.ConnectorOptions()...)
	if err != nil {
		return err
	}
	connector.Handler = logger.NewHandler(log.Log)
	if *flagJSON {
		connector.Handler = handlers.StdoutHandler
	}
	host, _, err := net.SplitHostPort(*flagAddress)
	if err != nil {
		return err
	}
	ctx := context.Background()
	conn, err := connector.Dialer.DialContext(ctx, "tcp", *flagAddress)
	if err != nil {
		return err
	}
	stream, err := connector.Connect(ctx, host, conn)
	if err != nil {
		return err
	}
	defer stream.Close()
	r := result{ConnectionState: model.NewTLSConnectionState(stream.ConnectionState())}
	if err := stream.VerifyError(); err != nil {
		r.VerifyError = err.Error()
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(stdout, "%s\n", string(data))
	return err
}
