package main

import (
	"os"
	"runtime"

	"github.com/ThatOtherAndrew/Turntable/cmd"
)

func init() {
	runtime.LockOSThread()
}

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
