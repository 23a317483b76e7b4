package main

import "github.com/pressroom-io/pressroom/cmd/pressroom/cmd"

func main() {
	cmd.Execute()
}
