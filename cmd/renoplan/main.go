package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

func main() {
	// .env 仅用于本地开发，缺失不报错
	// .env is for local development only; a missing file is fine.
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "renoplan: %v\n", err)
		os.Exit(1)
	}
}
