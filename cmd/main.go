package main

import (
	"github.com/lurkkit/agent/cmd/agent"
)

func main() {
	agent.Execute()
}
