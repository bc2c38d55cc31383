package main

import "github.com/andresmejia3/thermosentinel/cmd"

func main() {
	cmd.Execute()
}
