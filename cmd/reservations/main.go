package main

import "github.com/diagnosis/reservations/internal/cli"

func main() {
	cli.Execute()
}
