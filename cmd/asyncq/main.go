// Command asyncq runs producer/consumer pipelines through an asyncqueue
// Queue.
package main

import "github.com/sarchlab/asyncqueue/cmd/asyncq/cmd"

func main() {
	cmd.Execute()
}
