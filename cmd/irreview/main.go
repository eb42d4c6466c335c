// Package main provides the entry point for the irreview CLI.
//
// irreview turns an investor-relations disclosure PDF into a Markdown
// review in which every extracted figure and finding cites the page it
// came from.
//
// Usage:
//
//	irreview convert <pdf> -o <outdir>
//	irreview history [doc-id]
//
// See --help for all available options.
package main

func main() {
	Execute()
}
