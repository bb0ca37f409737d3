package main

import "github.com/frahmantamala/pix-deposit/cmd"

func main() {
	cmd.Execute()
}
