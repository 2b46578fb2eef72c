// Command voicelogctl drives a running voicelog server from a terminal.
//
// The access token is read from VOICELOG_TOKEN and is never written to disk;
// signin prints a token to export.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
)

var (
	serverURL = flag.String("server", envOr("VOICELOG_SERVER", "http://localhost:8090"), "voicelog server URL")
	timeout   = flag.Duration("timeout", 30*time.Second, "request timeout")
	siteURL   = flag.String("site", os.Getenv("PUBLIC_SITE_URL"), "public site URL used for sign-up confirmation links")
)

func main() {
	flag.Usage = usage
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cli := newCLI(*serverURL, *timeout, os.Getenv("VOICELOG_TOKEN"), *siteURL, os.Stdout)
	if err := cli.run(ctx, flag.Args()); err != nil {
		color.New(color.FgRed, color.Bold).Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(os.Stderr, "%s voicelogctl [flags] <command> [args]\n\n", bold("usage:"))
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  signup <email> <password>   create an account")
	fmt.Fprintln(os.Stderr, "  signin <email> <password>   print an access token for VOICELOG_TOKEN")
	fmt.Fprintln(os.Stderr, "  signout                     revoke VOICELOG_TOKEN")
	fmt.Fprintln(os.Stderr, "  whoami                      show the signed-in user")
	fmt.Fprintln(os.Stderr, "  save [file]                 save a transcript from file or stdin")
	fmt.Fprintln(os.Stderr, "  list [-limit n]             list saved conversations")
	fmt.Fprintln(os.Stderr, "  show <id>                   print one conversation")
	fmt.Fprintln(os.Stderr, "  delete <id>                 delete one conversation")
	fmt.Fprintln(os.Stderr, "  realtime [-lang l] [-prompt p]  mint an ephemeral voice credential")
	fmt.Fprintln(os.Stderr, "\nflags:")
	flag.PrintDefaults()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
