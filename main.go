// devtools inspects and controls browsers through their remote debugging
// endpoint.
package main

import "github.com/liuxd6825/devtools/internal/cmd"

func main() {
	cmd.Execute()
}
