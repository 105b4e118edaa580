package main

import "github.com/n2nstreams/saasfactory-cloud/internal/cli"

func main() {
	cli.Execute()
}
