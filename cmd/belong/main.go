package main

import (
	"github.com/mchmarny/belong/pkg/cli"
)

func main() {
	cli.Execute()
}
