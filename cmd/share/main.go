package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prxssh/share/internal/discovery"
	"github.com/prxssh/share/internal/folder"
	"github.com/prxssh/share/internal/logging"
	"github.com/prxssh/share/internal/node"
)

func main() {
	shareDir := flag.String("dir", ".", "directory to share with peers")
	downloadDir := flag.String("downloads", "./downloads", "directory downloaded files are written to")
	flag.Parse()

	setupLogger()
	log := slog.Default()

	sink := folder.NewSlogSink(log)
	n := node.New(log, folder.Static(*shareDir), sink)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := n.Start(ctx); err != nil {
		log.Error("failed to start node", "error", err)
		os.Exit(1)
	}
	defer n.Stop()

	log.Info("node started", "shared_dir", *shareDir, "port", n.GetAssignedPort())

	runREPL(ctx, log, n, *downloadDir)
}

func setupLogger() {
	opts := logging.DefaultOptions()
	opts.Slog.Level = slog.LevelInfo
	opts.ShowSource = false

	h := logging.NewPrettyHandler(os.Stdout, &opts)
	slog.SetDefault(slog.New(h))
}

// runREPL offers a minimal line-oriented console: peers, search,
// download, register, quit. Every command is best-effort; malformed
// input is reported and the loop continues.
func runREPL(ctx context.Context, log *slog.Logger, n *node.Node, downloadDir string) {
	var lastOffers []node.FileOffer

	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println("commands: peers | search | download <name> | register <host:port> | quit")

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}

		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "peers":
			for _, p := range n.Peers() {
				fmt.Println(p.String())
			}

		case "search":
			lastOffers = n.Search()
			for _, o := range lastOffers {
				fmt.Printf("%s\t%s\n", o.Filename, o.Peer.String())
			}

		case "download":
			if len(fields) != 2 {
				fmt.Println("usage: download <name>")
				continue
			}
			result := n.Download(fields[1], downloadDir, lastOffers)
			fmt.Printf("%s: %s\n", fields[1], result.Status)

		case "register":
			if len(fields) != 2 {
				fmt.Println("usage: register <host:port>")
				continue
			}
			addr, err := discovery.ParsePeerAddress(fields[1])
			if err != nil {
				fmt.Println("invalid address:", err)
				continue
			}
			n.RegisterPeer(addr)

		case "quit", "exit":
			return

		default:
			fmt.Println("unknown command:", fields[0])
		}
	}
}
