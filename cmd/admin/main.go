package main

import "os"

func main() {
	if err := newRootCommand(defaultEnv()).Execute(); err != nil {
		os.Exit(1)
	}
}
