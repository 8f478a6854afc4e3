package main

import "github.com/fabricpnr/corepnr/cmd/pnrdemo/cmd"

func main() {
	cmd.Execute()
}
