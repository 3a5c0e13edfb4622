package main

import "github.com/frahmantamala/pix-gateway/cmd"

func main() {
	cmd.Execute()
}
