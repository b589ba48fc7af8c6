// Manolo - per-chat Markov chatter bot for Telegram
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
