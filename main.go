// The main package for the leadcrawler executable.
package main

import "github.com/JakeFAU/leadcrawler/cmd"

func main() {
	cmd.Execute()
}
