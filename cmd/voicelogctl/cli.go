package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"

	"voicelog/internal/client"
	"voicelog/internal/models"
	"voicelog/internal/service/realtime"
	"voicelog/internal/session"
)

type cli struct {
	client *client.Client
	facade *session.Facade
	out    io.Writer
	stdin  io.Reader

	label  func(a ...interface{}) string
	user   func(a ...interface{}) string
	dimmed func(a ...interface{}) string
}

func newCLI(server string, timeout time.Duration, token, site string, out io.Writer) *cli {
	c := client.NewClient(server, timeout)
	c.SetAccessToken(token)
	return &cli{
		client: c,
		facade: session.NewFacade(c, nil, session.SiteURLs{Public: site}),
		out:    out,
		stdin:  os.Stdin,
		label:  color.New(color.FgCyan, color.Bold).SprintFunc(),
		user:   color.New(color.FgGreen).SprintFunc(),
		dimmed: color.New(color.Faint).SprintFunc(),
	}
}

func (c *cli) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("missing command")
	}
	if err := c.facade.Init(ctx); err != nil {
		return err
	}
	defer c.facade.Close()

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "signup":
		return c.signUp(ctx, rest)
	case "signin":
		return c.signIn(ctx, rest)
	case "signout":
		return c.signOut(ctx)
	case "whoami":
		return c.whoami()
	case "save":
		return c.save(ctx, rest)
	case "list":
		return c.list(ctx, rest)
	case "show":
		return c.show(ctx, rest)
	case "delete":
		return c.delete(ctx, rest)
	case "realtime":
		return c.realtime(ctx, rest)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (c *cli) signUp(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: signup <email> <password>")
	}
	user, err := c.facade.SignUp(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s %s (%s)\n", c.label("created"), c.user(user.Email), user.ID)
	return nil
}

func (c *cli) signIn(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: signin <email> <password>")
	}
	sess, err := c.facade.SignIn(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s %s until %s\n", c.label("signed in"), c.user(sess.User.Email), sess.ExpiresAt.Local().Format(time.RFC1123))
	fmt.Fprintf(c.out, "export VOICELOG_TOKEN=%s\n", sess.AccessToken)
	return nil
}

func (c *cli) signOut(ctx context.Context) error {
	if err := c.facade.SignOut(ctx); err != nil {
		return err
	}
	fmt.Fprintln(c.out, c.label("signed out"))
	return nil
}

func (c *cli) whoami() error {
	user := c.facade.State().User()
	if user == nil {
		return client.ErrNotSignedIn
	}
	fmt.Fprintf(c.out, "%s %s\n", c.user(user.Email), c.dimmed(user.ID))
	return nil
}

func (c *cli) save(ctx context.Context, args []string) error {
	var src io.Reader = c.stdin
	if len(args) > 0 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		src = f
	}
	text, err := io.ReadAll(src)
	if err != nil {
		return fmt.Errorf("read transcript: %w", err)
	}
	rec, err := c.client.SaveConversation(ctx, string(text), nil)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s %s (%d messages)\n", c.label("saved"), rec.ID, rec.Content.Metadata.MessageCount)
	return nil
}

func (c *cli) list(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	limit := fs.Int("limit", 0, "maximum records")
	if err := fs.Parse(args); err != nil {
		return err
	}
	list, err := c.client.ListConversations(ctx, *limit)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(c.out, c.dimmed("no conversations"))
		return nil
	}
	for _, rec := range list {
		fmt.Fprintf(c.out, "%s  %s  %d messages\n", rec.ID, c.dimmed(rec.CreatedAt.Local().Format(time.DateTime)), rec.Content.Metadata.MessageCount)
	}
	return nil
}

func (c *cli) show(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: show <id>")
	}
	rec, err := c.client.GetConversation(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s %s\n", c.label(rec.ID), c.dimmed(rec.Content.Metadata.SavedAt.Local().Format(time.DateTime)))
	for _, msg := range rec.Content.Messages {
		speaker := c.user("user")
		if msg.Role == models.RoleAssistant {
			speaker = c.label("AI")
		}
		fmt.Fprintf(c.out, "%s: %s\n", speaker, msg.Content)
	}
	return nil
}

func (c *cli) delete(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: delete <id>")
	}
	if err := c.client.DeleteConversation(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s %s\n", c.label("deleted"), args[0])
	return nil
}

func (c *cli) realtime(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("realtime", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	lang := fs.String("lang", "", "language: "+strings.Join(realtime.Languages(), ", "))
	prompt := fs.String("prompt", "", "custom instructions")
	if err := fs.Parse(args); err != nil {
		return err
	}
	secret, err := c.client.RealtimeClientSecret(ctx, realtime.CredentialRequest{Language: *lang, CustomPrompt: *prompt})
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, secret)
	return nil
}
