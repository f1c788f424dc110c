package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/converse/config"
	srv "github.com/mohammad-safakhou/converse/internal/server"
)

func main() {
	var root = &cobra.Command{Use: "converse"}

	root.AddCommand(serveCMD(), chatCMD())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCMD() *cobra.Command {
	var cfgPath string
	var serve = &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)

			return srv.Run(cfg)
		},
	}
	serve.Flags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return serve
}

func chatCMD() *cobra.Command {
	var cfgPath string
	var conversationID string
	var chat = &cobra.Command{
		Use:   "chat",
		Short: "Interactive terminal chat",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)

			a, tele, err := srv.BuildAssistant(cfg)
			if err != nil {
				return err
			}
			defer tele.Shutdown()

			if conversationID == "" {
				conversationID = uuid.NewString()
			}
			fmt.Printf("conversation %s (type 'exit' to quit, 'reset' to clear)\n", conversationID)

			sc := bufio.NewScanner(os.Stdin)
			sc.Buffer(make([]byte, 0, 64*1024), 64*1024)
			for {
				fmt.Print("> ")
				if !sc.Scan() {
					return sc.Err()
				}
				line := strings.TrimSpace(sc.Text())
				switch line {
				case "":
					continue
				case "exit", "quit":
					return nil
				case "reset":
					if err := a.Reset(cmd.Context(), conversationID); err != nil {
						fmt.Fprintf(os.Stderr, "reset failed: %v\n", err)
					}
					continue
				}

				ctx, cancel := context.WithTimeout(cmd.Context(), cfg.General.DefaultTimeout)
				resp := a.HandleTurn(ctx, conversationID, line)
				cancel()

				fmt.Println(resp.Text)
				for _, s := range resp.Sources {
					fmt.Printf("  [%s] %s\n", s.Domain, s.URL)
				}
			}
		},
	}
	chat.Flags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")
	chat.Flags().StringVar(&conversationID, "conversation", "", "conversation id (default random)")

	return chat
}
