// reelctl is a terminal client for the reel processing API.
package main

import (
	"os"

	"github.com/MrEthical07/reelclient/internal/cli"
)

var version = "dev"

func main() {
	if err := cli.Execute(version); err != nil {
		os.Exit(1)
	}
}
