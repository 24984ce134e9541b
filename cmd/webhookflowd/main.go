// Command webhookflowd runs the webhook-driven workflow automation engine.
package main

import (
	"fmt"
	"os"

	"github.com/compozy/webhookflow/cmd/webhookflowd/cli"
)

func main() {
	if err := cli.RootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
