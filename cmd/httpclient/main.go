// httpclient is a simple HTTP command line client whose TLS
// handshakes are performed by a tlsconnector.Connector.
//
// Usage:
//
//   httpclient [-auth-mode required|optional|none] [-ca-bundle <path>]
//              [-dns-server system:///|udp://<ip>[:<port>]] [-http2]
//              [-sni <name>] [-verbose] -url <URL>
//
//   httpclient -help
//
// We log what we are doing on the stderr and print the response
// body on the stdout.
//
// Examples:
//
//   ./httpclient -url https://ooni.org/
//   ./httpclient -auth-mode none -url https://self-signed.badssl.com/
//   ./httpclient -dns-server udp://1.1.1.1:53 -http2 -url https://ooni.org/
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"os"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/m-lab/go/rtx"
	"github.com/ooni/tlsadapter/cmd/common"
	"github.com/ooni/tlsadapter/handlers/logger"
	"github.com/ooni/tlsadapter/httpx"
)

var (
	flagDNSServer = flag.String("dns-server", "system:///", "DNS server to use")
	flagHTTP2     = flag.Bool("http2", false, "Speak HTTP/2")
	flagURL       = flag.String("url", "https://ooni.org/", "URL to fetch")
	flagVerbose   = flag.Bool("verbose", false, "Log every event")
)

var stdout io.Writer = os.Stdout

func main() {
	flag.Parse()
	log.SetHandler(cli.Default)
	err := mainfunc()
	rtx.Must(err, "mainfunc failed")
}

func mainfunc() error {
	if *common.FlagHelp {
		flag.CommandLine.SetOutput(stdout)
		fmt.Fprintf(stdout, "Usage: httpclient [flags] -url <url>\n")
		flag.PrintDefaults()
		fmt.Fprintf(stdout, "\nExamples:\n")
		fmt.Fprintf(stdout, "%s\n", "  ./httpclient -url https://ooni.org/")
		fmt.Fprintf(stdout, "%s\n",
			"  ./httpclient -auth-mode none -url https://self-signed.badssl.com/")
		fmt.Fprintf(stdout, "%s\n",
			"  ./httpclient -dns-server udp://1.1.1.1:53 -http2 -url https://ooni.org/")
		return nil
	}
	if *flagVerbose {
		log.SetLevel(log.DebugLevel)
	}
	config, err := newConfig()
	if err != nil {
		return err
	}
	client, err := httpx.NewClient(config)
	if err != nil {
		return err
	}
	defer client.Transport.CloseIdleConnections()
	return fetch(context.Background(), client.HTTPClient, *flagURL)
}

func newConfig() (httpx.Config, error) {
	config := httpx.Config{
		CABundle: *common.FlagCABundle,
		HTTP2:    *flagHTTP2,
		Handler:  logger.NewHandler(log.Log),
		SNI:      *common.FlagSNI,
	}
	mode, err := common.AuthMode()
	if err != nil {
		return config, err
	}
	config.AuthMode = mode
	config.DNSNetwork, config.DNSAddress, err = common.ParseDNSServer(*flagDNSServer)
	return config, err
}

func fetch(ctx context.Context, client *http.Client, URL string) error {
	req, err := http.NewRequestWithContext(ctx, "GET", URL, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	log.WithFields(log.Fields{
		"proto":      resp.Proto,
		"statusCode": resp.StatusCode,
	}).Info("httpclient: got response")
	data, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	_, err = stdout.Write(data)
	return err
}
