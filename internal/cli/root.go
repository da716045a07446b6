package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/MrEthical07/reelclient"
	"github.com/MrEthical07/reelclient/storage"
)

// app carries state shared by the commands of one invocation.
type app struct {
	configPath string
	settings   Settings

	client  *reelclient.Client
	closers []func() error
}

// NewRootCommand builds the reelctl command tree.
func NewRootCommand(version string) *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "reelctl",
		Short: "Command line client for the reel processing API",
		Long: `reelctl logs in to the reel processing API, submits reel URLs for
transcription and reads back task status and transcripts.

The session token is kept between runs (sqlite by default) and is dropped as
soon as the server rejects it.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			s, err := LoadSettings(a.configPath, cmd.Flags())
			if err != nil {
				return err
			}
			a.settings = s
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "config file (default "+DefaultConfigPath()+")")
	pf.String("mode", string(reelclient.ModeDevelopment), "development or production")
	pf.String("base-url", "", "API root, overrides mode and origin")
	pf.String("origin", "", "frontend origin used in production mode")
	pf.StringP("output", "o", formatTable, "output format: table, json or yaml")
	pf.Duration("timeout", 30*time.Second, "per request timeout, 0 for none")
	pf.Bool("request-id", false, "send an X-Request-ID header with every request")
	pf.String("storage", driverSQLite, "session storage: sqlite, redis or memory")
	pf.BoolP("verbose", "v", false, "log session events to stderr")

	root.AddCommand(
		a.loginCmd(),
		a.logoutCmd(),
		a.whoamiCmd(),
		a.registerCmd(),
		a.tasksCmd(),
		a.configCmd(),
	)
	return root
}

// Execute runs reelctl with os.Args.
func Execute(version string) error {
	root := NewRootCommand(version)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

// withClient builds the API client for a command and releases it, along
// with the storage it opened, when the command returns.
func (a *app) withClient(fn func(cmd *cobra.Command, c *reelclient.Client, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		c, err := a.clientFor(cmd)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := a.close(); err == nil {
				err = closeErr
			}
		}()
		return fn(cmd, c, args)
	}
}

func (a *app) clientFor(cmd *cobra.Command) (*reelclient.Client, error) {
	if a.client != nil {
		return a.client, nil
	}

	level := slog.LevelWarn
	if a.settings.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	st, err := a.openStorage()
	if err != nil {
		return nil, err
	}

	var sink reelclient.EventSink = reelclient.NoOpSink{}
	if a.settings.Verbose {
		sink = reelclient.NewSlogSink(logger)
	}

	c, err := reelclient.New().
		WithConfig(a.settings.ClientConfig()).
		WithStorage(st).
		WithNavigator(loginPrompt{w: cmd.ErrOrStderr()}).
		WithEventSink(sink).
		WithLogger(logger).
		Build(cmd.Context())
	if err != nil {
		_ = a.close()
		return nil, err
	}
	a.client = c
	return c, nil
}

func (a *app) openStorage() (storage.Storage, error) {
	s := a.settings.Storage
	switch s.Driver {
	case driverMemory:
		return storage.NewMemory(), nil
	case driverRedis:
		rdb := redis.NewClient(&redis.Options{Addr: s.RedisAddr})
		a.closers = append(a.closers, rdb.Close)
		return storage.NewRedis(rdb, s.RedisPrefix, 0), nil
	default:
		db, err := storage.NewSQLite(s.Path)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		return db, nil
	}
}

func (a *app) close() error {
	if a.client != nil {
		a.client.Close()
		a.client = nil
	}
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}

// loginPrompt is the terminal's login surface.
type loginPrompt struct {
	w io.Writer
}

func (p loginPrompt) Navigate(context.Context, string) {
	fmt.Fprintln(p.w, "session expired, run `reelctl login`")
}
