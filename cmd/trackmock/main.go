// trackmock - stateful mock of an issue-tracking REST API.
package main

import "github.com/trackmock/trackmock/pkg/cli"

func main() {
	cli.Execute()
}
