package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/coliana/internal/app"
)

func main() {
	// exportはCSVを標準出力に書くため、ログは標準エラーに出す
	if err := app.Run(os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "coliana: %v\n", err)
		os.Exit(1)
	}
}
