package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chatwalk/chatwalk"
	"github.com/chatwalk/chatwalk/pkg/domain"
)

// runCmd drives a bot on the terminal: bubbles print, inputs prompt.
var runCmd = &cobra.Command{
	Use:   "run <bot-file>",
	Short: "Run a bot interactively on the terminal",
	Long:  `Starts a local chat session with the given bot graph file and relays the conversation over stdin/stdout.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runInteractive(cmd, args[0]); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runInteractive(cmd *cobra.Command, path string) error {
	graph, err := parseGraphFile(path)
	if err != nil {
		return err
	}

	engine := chatwalk.New(chatwalk.WithLogger(newLogger(cmd)))

	ctx := cmd.Context()
	start, err := engine.StartChat(ctx, &domain.StartChatInput{Graph: graph})
	if err != nil {
		return err
	}

	title := graph.Name
	if title == "" {
		title = graph.ID
	}
	fmt.Printf("--- %s ---\n", title)
	printReply(&start.Reply)

	reader := bufio.NewReader(os.Stdin)
	reply := &start.Reply

	for reply.Input != nil {
		fmt.Print("> ")
		text, err := reader.ReadString('\n')
		if err != nil {
			return err
		}
		text = strings.TrimSpace(text)
		if text == "exit" || text == "quit" {
			fmt.Println("Bye!")
			return nil
		}

		reply, err = engine.ContinueChat(ctx, start.SessionID, domain.TextMessage(text))
		if err != nil {
			return err
		}
		printReply(reply)
	}

	return nil
}

func printReply(r *domain.Reply) {
	for _, msg := range r.Messages {
		fmt.Println(renderMessage(msg))
	}
	for _, log := range r.Logs {
		fmt.Printf("[%s] %s\n", log.Status, log.Description)
	}
	if r.Input != nil {
		for i, item := range r.Input.Items {
			if item.Content != "" {
				fmt.Printf("  %d) %s\n", i+1, item.Content)
			}
		}
	}
}

func renderMessage(msg domain.ChatMessage) string {
	switch msg.Type {
	case domain.BlockText:
		if text, ok := msg.Content["markdown"].(string); ok {
			return text
		}
		if text, ok := msg.Content["plainText"].(string); ok {
			return text
		}
	case domain.BlockImage, domain.BlockVideo, domain.BlockAudio, domain.BlockEmbed:
		if url, ok := msg.Content["url"].(string); ok {
			return fmt.Sprintf("[%s] %s", msg.Type, url)
		}
	}
	return fmt.Sprintf("[%s]", msg.Type)
}
