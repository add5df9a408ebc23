package main

import (
	"os"

	"github.com/JT-427/LiveQuiz/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
