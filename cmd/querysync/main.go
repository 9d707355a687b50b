// # cmd/querysync/main.go
package main

import (
	"os"

	"querysync/internal/ui/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:]))
}
