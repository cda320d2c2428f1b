// Command analyzer ingests League of Legends matches into running
// aggregates and recommends champions for a draft.
package main

import "draft-analyzer/internal/cli"

func main() {
	cli.Execute()
}
