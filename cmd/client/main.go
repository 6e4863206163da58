package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tdnguyen/parley/pkg/client"
	"github.com/tdnguyen/parley/pkg/version"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:9700", "server address")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("parley " + version.Full())
		return
	}

	c, err := client.Dial(*addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer func() { _ = c.Close() }()

	if err := c.Run(os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "connection error: %v\n", err)
		os.Exit(1)
	}
}
