// Command coursechat is the entry point for the course materials assistant.
// It ingests course transcripts into a vector store and answers questions
// about them through a tool-calling LLM agent.
package main

import (
	"fmt"
	"os"

	"github.com/coursechat/coursechat-go/cmd/coursechat/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
