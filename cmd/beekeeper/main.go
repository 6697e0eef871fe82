// Command beekeeper runs the identity and membership server and its operator tooling.
package main

import "os"

func main() {
	os.Exit(execute())
}
