package main

import (
	"fmt"
	"os"

	"carrental/backend/internal/cli"
)

func main() {
	if err := cli.NewRootCommand(cli.MongoStoreOpener).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
