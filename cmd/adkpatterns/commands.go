package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"golang.org/x/term"

	"github.com/hupe1980/adkpatterns"
	"github.com/hupe1980/adkpatterns/core"
	"github.com/hupe1980/adkpatterns/server"
	"github.com/hupe1980/adkpatterns/tutorials"
)

// ListCmd prints the tutorials.
type ListCmd struct{}

func (c *ListCmd) Run(out io.Writer) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, "NAME\tDESCRIPTION\tTRY")

	for _, t := range tutorials.All() {
		fmt.Fprintf(tw, "%s\t%s\t%q\n", t.Name, t.Description, t.SamplePrompt)
	}

	return tw.Flush()
}

// RunCmd runs one agent, either once or as an interactive session.
type RunCmd struct {
	Tutorial string `arg:"" optional:"" help:"Tutorial name (see list)."`
	Config   string `help:"YAML agent definition used instead of a tutorial." type:"existingfile"`
	Prompt   string `short:"p" help:"Send one message and exit."`
	Session  string `help:"Session ID; reuse it to continue a conversation." default:"cli"`
}

func (c *RunCmd) Validate() error {
	if (c.Tutorial == "") == (c.Config == "") {
		return errors.New("give either a tutorial name or --config")
	}

	return nil
}

func (c *RunCmd) Run(g *Globals, in io.Reader, out io.Writer) error {
	env, err := g.setup()
	if err != nil {
		return err
	}
	defer env.Close(context.Background()) //nolint:errcheck

	var root core.Agent
	if c.Config != "" {
		root, err = env.buildConfigAgent(c.Config)
	} else {
		var t tutorials.Tutorial

		t, err = tutorials.Lookup(c.Tutorial)
		if err == nil {
			root, err = t.Build(env.models.Resolver())
		}
	}

	if err != nil {
		return err
	}

	env.app.RegisterAgent(root)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if c.Prompt != "" {
		return runPrompt(ctx, env.app, out, c.Session, root.Name(), c.Prompt)
	}

	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return repl(ctx, env.app, in, out, c.Session, root.Name())
	}

	data, err := io.ReadAll(in)
	if err != nil {
		return err
	}

	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return errors.New("no prompt: use -p or pipe a message on stdin")
	}

	return runPrompt(ctx, env.app, out, c.Session, root.Name(), prompt)
}

// runPrompt sends one message and prints the events as they arrive.
func runPrompt(ctx context.Context, app *adkpatterns.App, out io.Writer, sessionID, agentName, prompt string) error {
	_, events, errs, err := app.Invoke(ctx, sessionID, agentName, prompt)
	if err != nil {
		return err
	}

	printEvents(out, events)

	return <-errs
}

// repl reads one message per line until EOF, "exit" or "quit". Run errors
// are printed and the session continues.
func repl(ctx context.Context, app *adkpatterns.App, in io.Reader, out io.Writer, sessionID, agentName string) error {
	fmt.Fprintf(out, "Talking to %s (session %s). Type exit to quit.\n", agentName, sessionID)

	scanner := bufio.NewScanner(in)

	for {
		fmt.Fprint(out, "> ")

		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())

		switch line {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		if err := runPrompt(ctx, app, out, sessionID, agentName, line); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			fmt.Fprintf(out, "error: %v\n", err)
		}
	}
}

func printEvents(out io.Writer, events <-chan core.Event) {
	streaming := false

	for ev := range events {
		if ev.Author == core.AuthorUser {
			continue
		}

		if ev.IsPartial() {
			if !streaming {
				fmt.Fprintf(out, "[%s] ", ev.Author)
				streaming = true
			}

			fmt.Fprint(out, ev.Text())

			continue
		}

		if streaming {
			// The complete message repeats what was streamed.
			fmt.Fprintln(out)

			streaming = false

			if len(ev.GetFunctionCalls()) == 0 {
				continue
			}
		}

		for _, fc := range ev.GetFunctionCalls() {
			fmt.Fprintf(out, "[%s] -> %s(%s)\n", ev.Author, fc.Name, fc.Arguments)
		}

		if ev.IsError() {
			fmt.Fprintf(out, "[%s] error: %s\n", ev.Author, *ev.ErrorMessage)
		}

		if text := strings.TrimSpace(ev.Text()); text != "" {
			fmt.Fprintf(out, "[%s] %s\n", ev.Author, text)
		}
	}

	if streaming {
		fmt.Fprintln(out)
	}
}

// ServeCmd serves every tutorial over HTTP.
type ServeCmd struct {
	Addr       string        `help:"Listen address." default:":8080"`
	Config     string        `help:"Also serve the agent defined in this YAML file." type:"existingfile"`
	RunTimeout time.Duration `help:"Upper bound for one run." default:"5m"`
}

func (c *ServeCmd) Run(g *Globals) error {
	env, err := g.setup()
	if err != nil {
		return err
	}
	defer env.Close(context.Background()) //nolint:errcheck

	agents, err := tutorials.BuildAll(env.models.Resolver())
	if err != nil {
		return err
	}

	if c.Config != "" {
		a, err := env.buildConfigAgent(c.Config)
		if err != nil {
			return err
		}

		agents = append(agents, a)
	}

	for _, a := range agents {
		env.app.RegisterAgent(a)
	}

	srv := &http.Server{
		Addr: c.Addr,
		Handler: server.New(env.app, func(o *server.Options) {
			o.Metrics = env.recorder.Handler()
			o.RunTimeout = c.RunTimeout
			o.Logger = env.logger
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)

	go func() {
		env.logger.Info("server.listening", "addr", c.Addr, "agents", len(agents))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return err
	case <-ctx.Done():
	}

	env.logger.Info("server.shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}
