package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

const shellHelp = `Available commands:
  register <id> <password>
  login <id> <password>
  logout
  reminders [user]
  remind [--for user] [--at RFC3339] <text...>
  forget <reminder id>
  grant <user>
  revoke <user>
  permissions
  exit`

// Shell is the interactive command loop of the client.
type Shell struct {
	API         *API
	Session     *Session
	SessionPath string
	In          io.Reader
	Out         io.Writer
}

// Run reads commands until exit, end of input or ctx cancellation.
func (s *Shell) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(s.In)
	for {
		fmt.Fprint(s.Out, "guardpine> ")
		if !scanner.Scan() {
			fmt.Fprintln(s.Out)
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		args := strings.Fields(scanner.Text())
		if len(args) == 0 {
			continue
		}
		if args[0] == "exit" || args[0] == "quit" {
			fmt.Fprintln(s.Out, "Bye")
			return nil
		}
		if err := s.Exec(ctx, args); err != nil {
			fmt.Fprintf(s.Out, "error: %v\n", err)
		}
	}
}

var errUsage = errors.New("usage")

// Exec runs a single command.
func (s *Shell) Exec(ctx context.Context, args []string) error {
	err := s.exec(ctx, args[0], args[1:])
	if errors.Is(err, errUsage) {
		fmt.Fprintln(s.Out, shellHelp)
		return nil
	}
	return err
}

func (s *Shell) exec(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "help":
		fmt.Fprintln(s.Out, shellHelp)
		return nil
	case "register":
		if len(args) != 2 {
			return errUsage
		}
		if err := s.API.Register(ctx, args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintf(s.Out, "registered %s\n", args[0])
		return nil
	case "login":
		if len(args) != 2 {
			return errUsage
		}
		token, err := s.API.Login(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		s.Session.UserID, s.Session.Token = args[0], token
		if err := s.Session.Save(s.SessionPath); err != nil {
			return fmt.Errorf("save session: %w", err)
		}
		fmt.Fprintf(s.Out, "logged in as %s\n", args[0])
		return nil
	case "logout":
		s.API.token = ""
		s.Session.UserID, s.Session.Token = "", ""
		return s.Session.Save(s.SessionPath)
	case "reminders":
		owner := ""
		if len(args) > 0 {
			owner = args[0]
		}
		items, err := s.API.Reminders(ctx, owner)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Fprintln(s.Out, "no reminders")
		}
		for _, r := range items {
			line := fmt.Sprintf("#%d %s", r.ID, r.Content)
			if r.NotificationTime != nil {
				line += " @ " + r.NotificationTime.Format(time.RFC3339)
			}
			fmt.Fprintln(s.Out, line)
		}
		return nil
	case "remind":
		return s.remind(ctx, args)
	case "forget":
		if len(args) != 1 {
			return errUsage
		}
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("bad reminder id %q", args[0])
		}
		if err := s.API.Forget(ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(s.Out, "forgot #%d\n", id)
		return nil
	case "grant", "revoke":
		if len(args) != 1 {
			return errUsage
		}
		call := s.API.Grant
		if cmd == "revoke" {
			call = s.API.Revoke
		}
		msg, err := call(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(s.Out, msg)
		return nil
	case "permissions":
		ids, err := s.API.Permissions(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(s.Out, strings.Join(ids, ", "))
		return nil
	default:
		return fmt.Errorf("unknown command %q, type help", cmd)
	}
}

func (s *Shell) remind(ctx context.Context, args []string) error {
	flags := pflag.NewFlagSet("remind", pflag.ContinueOnError)
	flags.SetOutput(io.Discard)
	owner := flags.String("for", "", "owner of the reminder")
	at := flags.String("at", "", "notification time (RFC3339)")
	if err := flags.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	text := strings.Join(flags.Args(), " ")
	if text == "" {
		return errUsage
	}
	var when *time.Time
	if *at != "" {
		t, err := time.Parse(time.RFC3339, *at)
		if err != nil {
			return fmt.Errorf("bad --at: %w", err)
		}
		when = &t
	}
	r, err := s.API.Remind(ctx, *owner, text, when)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.Out, "created #%d for %s\n", r.ID, r.UserID)
	return nil
}
