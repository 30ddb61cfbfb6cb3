package main

import "github.com/warp/gami-engine/cmd/gami/root"

func main() {
	root.Execute()
}
