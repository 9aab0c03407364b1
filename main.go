package main

import "github.com/frahmantamala/receiptlens/cmd"

func main() {
	cmd.Execute()
}
