package main

import "github.com/noah-isme/registrar-api/internal/cli"

func main() {
	cli.Execute()
}
