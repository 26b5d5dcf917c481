package main

import "github.com/pkgindex/pkgindex/internal/cli"

func main() {
	cli.Execute()
}
