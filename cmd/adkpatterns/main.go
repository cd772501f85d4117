// Command adkpatterns runs the tutorial agents from the terminal or over
// HTTP.
//
// Usage:
//
//	adkpatterns list
//	adkpatterns run essay -p "Write an essay about tide pools."
//	adkpatterns run --config agent.yaml
//	adkpatterns serve --addr :8080 --store sqlite --db sessions.db
package main

import (
	"io"
	"os"

	"github.com/alecthomas/kong"

	"github.com/hupe1980/adkpatterns/config"
)

// Globals are shared by every command.
type Globals struct {
	LogLevel  string `help:"Log level (debug, info, warn, error)." default:"warn" env:"ADK_LOG_LEVEL"`
	LogFormat string `help:"Log format (text, json)." default:"text" enum:"text,json"`

	Store string `help:"Session store (memory, sqlite)." default:"memory" enum:"memory,sqlite"`
	DB    string `help:"SQLite database path." default:"adkpatterns.db" type:"path"`

	Provider string `help:"Send every model through one provider (gemini, openai, anthropic, ollama)."`
	Model    string `help:"Replace every model identifier, e.g. gpt-4o-mini or llama3.2."`

	Trace   bool     `help:"Print OpenTelemetry spans to stderr."`
	EnvFile []string `name:"env-file" help:"Dotenv files to load (default .env)." type:"path"`

	GoogleAPIKey    string `name:"google-api-key" env:"GOOGLE_API_KEY" help:"Gemini API key."`
	OpenAIAPIKey    string `name:"openai-api-key" env:"OPENAI_API_KEY" help:"OpenAI API key."`
	AnthropicAPIKey string `name:"anthropic-api-key" env:"ANTHROPIC_API_KEY" help:"Anthropic API key."`
	OllamaHost      string `name:"ollama-host" env:"OLLAMA_HOST" help:"Ollama server URL."`
}

// CLI defines the command-line interface.
type CLI struct {
	Globals

	List  ListCmd  `cmd:"" help:"List the tutorials."`
	Run   RunCmd   `cmd:"" help:"Run a tutorial or a YAML agent."`
	Serve ServeCmd `cmd:"" help:"Serve every tutorial over HTTP."`
}

func newParser(cli *CLI, stdin io.Reader, stdout io.Writer, exit func(int)) (*kong.Kong, error) {
	return kong.New(cli,
		kong.Name("adkpatterns"),
		kong.Description("Agent orchestration patterns: sequential, parallel, loop and callbacks."),
		kong.UsageOnError(),
		kong.Writers(stdout, os.Stderr),
		kong.Exit(exit),
		kong.Bind(&cli.Globals),
		kong.BindTo(stdin, (*io.Reader)(nil)),
		kong.BindTo(stdout, (*io.Writer)(nil)),
	)
}

func main() {
	// Values bound to env vars are read during parsing, so the default
	// .env file has to be loaded first.
	_ = config.LoadDotEnv()

	var cli CLI

	parser, err := newParser(&cli, os.Stdin, os.Stdout, os.Exit)
	if err != nil {
		panic(err)
	}

	ctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	err = ctx.Run()
	ctx.FatalIfErrorf(err)
}
