package main

import "quarterload/cmd"

func main() {
	cmd.Execute()
}
