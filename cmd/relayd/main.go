package main

import (
	"scriptrelay/server"
)

func main() {
	server.Main()
}
