// Command jarvis-cli is a terminal client for a jarvis-chat server.
//
//	jarvis-cli -server http://localhost:8080 -token $JARVIS_TOKEN
//
// Lines starting with a slash are commands (/new, /list, /open <id>,
// /delete <id>, /quit); anything else is sent as a message.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/joho/godotenv"

	"github.com/comigor/jarvis-chat/internal/logger"
	"github.com/comigor/jarvis-chat/internal/chatclient"
)

func main() {
	_ = godotenv.Load()

	server := flag.String("server", envOr("JARVIS_URL", "http://localhost:8080"), "jarvis-chat base URL")
	token := flag.String("token", os.Getenv("JARVIS_TOKEN"), "session token")
	cookie := flag.String("cookie", chatclient.DefaultCookieName, "session cookie name")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	level := "warn"
	if *verbose {
		level = "debug"
	}
	logger.Init(logger.Config{Level: level, Pretty: true, ServiceName: "jarvis-cli"})
	l := logger.L()

	if *token == "" {
		l.Fatal().Msg("a session token is required (-token or JARVIS_TOKEN)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	ctl := chatclient.NewController(chatclient.New(*server, chatclient.WithCookieName(*cookie)), chatclient.NewStore())
	if err := ctl.SignIn(ctx, *token); err != nil {
		l.Fatal().Err(err).Str("server", *server).Msg("sign in failed")
	}

	snap := ctl.Store().Snapshot()
	fmt.Printf("signed in as %s, %d conversation(s)\n", snap.Identity.UserID, len(snap.Conversations))

	if err := repl(ctx, ctl, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		l.Fatal().Err(err).Msg("session ended")
	}
}

func repl(ctx context.Context, ctl *chatclient.Controller, in io.Reader, out io.Writer) error {
	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !sc.Scan() {
			return sc.Err()
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		if !strings.HasPrefix(line, "/") {
			err := ctl.Send(ctx, line, func(frag string) { fmt.Fprint(out, frag) })
			fmt.Fprintln(out)
			if err != nil {
				fmt.Fprintf(out, "! %s\n", ctl.Store().Snapshot().Notice)
				logger.L().Debug().Err(err).Msg("send failed")
			}
			continue
		}

		cmd, arg, _ := strings.Cut(line, " ")
		arg = strings.TrimSpace(arg)
		var err error
		switch cmd {
		case "/quit", "/exit":
			return nil
		case "/new":
			c, cerr := ctl.NewConversation(ctx)
			if err = cerr; err == nil {
				fmt.Fprintf(out, "started %s\n", c.ID)
			}
		case "/list":
			if err = ctl.Refresh(ctx); err == nil {
				snap := ctl.Store().Snapshot()
				for _, c := range snap.Conversations {
					marker := " "
					if c.ID == snap.ActiveID {
						marker = "*"
					}
					fmt.Fprintf(out, "%s %s  %s  %d message(s)\n", marker, c.ID, c.CreatedAt.Local().Format("2006-01-02 15:04"), len(c.Messages))
				}
			}
		case "/open":
			if err = ctl.Select(ctx, arg); err == nil {
				for _, m := range ctl.Store().Snapshot().Transcript {
					fmt.Fprintf(out, "[%s] %s\n", m.Role, m.Content)
				}
			}
		case "/delete":
			if err = ctl.Delete(ctx, arg); err == nil {
				fmt.Fprintf(out, "deleted %s\n", arg)
			}
		default:
			fmt.Fprintln(out, "commands: /new, /list, /open <id>, /delete <id>, /quit")
		}
		if err != nil {
			fmt.Fprintf(out, "! %v\n", err)
		}
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
