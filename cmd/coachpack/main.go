// Command coachpack assembles the coaching context pack from the local
// database and either prints it or sends a chat turn to the coaching API.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"tricoach/coach"
	"tricoach/config"
	"tricoach/contextpack"
	"tricoach/store"
)

func main() {
	var (
		cfgPath    = flag.String("config", "", "Path to TOML config file (optional)")
		history    = flag.Bool("history", true, "Include the training history section")
		histRange  = flag.String("range", "7d", "History range: 7d or 14d")
		restMenu   = flag.Bool("restmenu", false, "Include the rest menu section")
		recentChat = flag.Bool("recent-chat", false, "Include the recent chat section")
		turns      = flag.Int("turns", 2, "Recent chat turns to include (2 or 3)")
		metaOut    = flag.Bool("meta", false, "Print pack meta as JSON instead of the pack text")
		send       = flag.String("send", "", "Send this message to the coaching API with the pack as context")
		echo       = flag.Bool("echo", false, "Round-trip the pack through the echo endpoint and print the result")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	db, err := store.OpenSQLite(cfg.DBPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open store failed: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	builder := contextpack.NewBuilder(db)
	builder.Budget = cfg.Budget()

	ctx := context.Background()
	pack := builder.Build(ctx, contextpack.Options{
		IncludeHistory:    *history,
		HistoryRange:      contextpack.HistoryRange(*histRange),
		IncludeRestMenu:   *restMenu,
		IncludeRecentChat: *recentChat,
		RecentTurns:       *turns,
	})
	for _, err := range pack.Errors {
		fmt.Fprintf(os.Stderr, "context pack: %v\n", err)
	}

	switch {
	case *send != "":
		client := coach.NewClient(cfg.APIBase)
		client.MaxOutputChars = cfg.MaxOutputChars
		reply, err := client.Chat(ctx, coach.ComposeFinalText(pack.Text, strings.TrimSpace(*send)))
		if err != nil {
			fmt.Fprintf(os.Stderr, "chat failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(reply.ReplyText)
		if reply.Proposal != nil {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(reply.Proposal); err != nil {
				fmt.Fprintf(os.Stderr, "json encode failed: %v\n", err)
				os.Exit(1)
			}
		}
	case *echo:
		client := coach.NewClient(cfg.APIBase)
		result, err := client.Echo(ctx, pack.Text)
		if err != nil {
			fmt.Fprintf(os.Stderr, "echo failed: %v\n", err)
			os.Exit(1)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			fmt.Fprintf(os.Stderr, "json encode failed: %v\n", err)
			os.Exit(1)
		}
	case *metaOut:
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(pack.Meta); err != nil {
			fmt.Fprintf(os.Stderr, "json encode failed: %v\n", err)
			os.Exit(1)
		}
	default:
		fmt.Println(pack.Text)
	}
}
