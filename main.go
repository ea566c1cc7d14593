package main

import "github.com/audiolibrelab/liveexport/cmd"

func main() {
	cmd.Execute()
}
