// Command gcractl checks, inspects and resets GCRA limiter keys in Redis.
package main

import "github.com/sagarsuperuser/gcra/cmd/gcractl/cmd"

func main() {
	cmd.Execute()
}
