package main

import "github.com/user/scanhub/cmd"

func main() {
	cmd.Execute()
}
