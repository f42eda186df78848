// Command seqhound compiles and runs ordered-event-sequence detection rules.
package main

import "os"

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
