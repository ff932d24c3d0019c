package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/hrygo/remindbot/internal/profile"
	"github.com/hrygo/remindbot/internal/version"
	"github.com/hrygo/remindbot/plugin/reminder"
	"github.com/hrygo/remindbot/plugin/reminder/keyword"
	"github.com/hrygo/remindbot/plugin/reminder/temporal"
	"github.com/hrygo/remindbot/server"
	"github.com/hrygo/remindbot/server/timezone"
	"github.com/hrygo/remindbot/store"
	"github.com/hrygo/remindbot/store/db"
)

var (
	rootCmd = &cobra.Command{
		Use:   "remindbot",
		Short: "Reminder engine for chat bots: natural-language scheduling, repeats and postpones.",
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			level := slog.LevelInfo
			if viper.GetString("mode") != "prod" {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the due-reminder scheduler",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}

	parseCmd = &cobra.Command{
		Use:   "parse <text>",
		Short: "Preview how a reminder text would be scheduled",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return preview(cmd.Context(), strings.Join(args, " "))
		},
	}

	execCmd = &cobra.Command{
		Use:   "exec <command>",
		Short: "Apply a callback command such as s12t18:30 or s12PT15M",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd.Context(), args[0])
		},
	}
)

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("driver", "sqlite")
	viper.SetDefault("port", 8081)
	viper.SetDefault("timezone", timezone.TimezoneUTC)
	viper.SetDefault("language", "en")

	rootCmd.PersistentFlags().String("mode", "dev", `mode of server, can be "prod" or "dev" or "demo"`)
	rootCmd.PersistentFlags().String("addr", "", "address of server")
	rootCmd.PersistentFlags().Int("port", 8081, "port of server")
	rootCmd.PersistentFlags().String("data", "", "data directory")
	rootCmd.PersistentFlags().String("driver", "sqlite", "database driver (sqlite or postgres)")
	rootCmd.PersistentFlags().String("dsn", "", "database source name")
	rootCmd.PersistentFlags().String("timezone", timezone.TimezoneUTC, "default IANA timezone of reminder owners")
	rootCmd.PersistentFlags().String("language", "en", "default keyword language of reminder owners")
	rootCmd.PersistentFlags().String("locale-dir", "", "directory of *.yaml keyword tables replacing the embedded ones")
	rootCmd.PersistentFlags().Duration("scheduler-interval", 0, "how often due reminders are polled")
	rootCmd.PersistentFlags().Float64("notify-per-second", 0, "outgoing notification rate limit")

	for _, name := range []string{
		"mode", "addr", "port", "data", "driver", "dsn",
		"timezone", "language", "locale-dir", "scheduler-interval", "notify-per-second",
	} {
		if err := viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("remindbot")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	rootCmd.AddCommand(serveCmd, parseCmd, execCmd)
}

func loadProfile() (*profile.Profile, error) {
	p := &profile.Profile{}
	p.FromEnv()
	p.Mode = viper.GetString("mode")
	p.Addr = viper.GetString("addr")
	p.Port = viper.GetInt("port")
	p.Data = viper.GetString("data")
	p.Driver = viper.GetString("driver")
	p.DSN = viper.GetString("dsn")
	p.DefaultTimezone = viper.GetString("timezone")
	p.DefaultLanguage = viper.GetString("language")
	p.Version = version.GetCurrentVersion(p.Mode)
	if v := viper.GetString("locale-dir"); v != "" {
		p.LocaleDir = v
	}
	if v := viper.GetDuration("scheduler-interval"); v > 0 {
		p.SchedulerInterval = v
	}
	if v := viper.GetFloat64("notify-per-second"); v > 0 {
		p.NotifyPerSecond = v
	}
	if p.Data == "" && p.Mode != "prod" {
		p.Data = "."
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func loadRegistry(p *profile.Profile) (*temporal.Registry, error) {
	var (
		tables *keyword.Tables
		err    error
	)
	if p.LocaleDir != "" {
		tables, err = keyword.Load(os.DirFS(p.LocaleDir), p.DefaultLanguage)
	} else {
		tables, err = keyword.Embedded(p.DefaultLanguage)
	}
	if err != nil {
		return nil, err
	}
	return temporal.NewRegistry(tables), nil
}

func defaultOwners(p *profile.Profile) reminder.OwnerResolver {
	return reminder.StaticOwners{
		Location: timezone.LocationOrUTC(p.DefaultTimezone),
		Language: p.DefaultLanguage,
	}
}

// openService opens and migrates the configured store.
func openService(ctx context.Context, p *profile.Profile) (*reminder.Service, *store.Store, error) {
	registry, err := loadRegistry(p)
	if err != nil {
		return nil, nil, err
	}
	dbDriver, err := db.NewDBDriver(p)
	if err != nil {
		return nil, nil, err
	}
	storeInstance := store.New(dbDriver, p)
	if err := storeInstance.Migrate(ctx); err != nil {
		_ = storeInstance.Close()
		return nil, nil, err
	}
	return reminder.NewService(reminder.NewDBStore(storeInstance), registry, defaultOwners(p)), storeInstance, nil
}

func serve(ctx context.Context) error {
	p, err := loadProfile()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	service, storeInstance, err := openService(ctx, p)
	if err != nil {
		return err
	}
	defer storeInstance.Close()

	config := reminder.DefaultSchedulerConfig()
	config.Interval = p.SchedulerInterval
	config.NotifyPerSecond = p.NotifyPerSecond
	scheduler := reminder.NewScheduler(service, reminder.LogNotifier{Logger: slog.Default()}, config)
	httpServer := server.NewServer(p, service, reminder.NewHealthCheck(scheduler))

	printGreetings(p)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := scheduler.Start(gctx); err != nil {
			return err
		}
		<-gctx.Done()
		scheduler.Stop()
		return nil
	})
	g.Go(func() error {
		return httpServer.Start(gctx)
	})
	return g.Wait()
}

func preview(ctx context.Context, text string) error {
	p, err := loadProfile()
	if err != nil {
		return err
	}
	registry, err := loadRegistry(p)
	if err != nil {
		return err
	}
	service := reminder.NewService(reminder.NewMemoryStore(), registry, defaultOwners(p))

	result, loc, err := service.Preview(ctx, 0, 0, text)
	if err != nil {
		return err
	}
	fmt.Printf("fire at: %s\n", timezone.FormatFireTime(result.At(loc).Unix(), loc))
	fmt.Printf("text:    %q\n", result.Text)
	for _, m := range result.Matches {
		fmt.Printf("match:   %-12s %q\n", m.Strategy, m.Span)
	}
	return nil
}

func execute(ctx context.Context, command string) error {
	p, err := loadProfile()
	if err != nil {
		return err
	}
	service, storeInstance, err := openService(ctx, p)
	if err != nil {
		return err
	}
	defer storeInstance.Close()

	out, err := service.Execute(ctx, command)
	if err != nil {
		return err
	}
	fmt.Printf("%s: #%d %q\n", out.Command.Action, out.Reminder.ID, out.Reminder.Text)
	if out.Copied {
		fmt.Println("created a one-shot copy; the repeating reminder is unchanged")
	}
	fmt.Println(out.Summary.Describe())
	return nil
}

func printGreetings(p *profile.Profile) {
	fmt.Printf("remindbot %s started (mode %s, driver %s)\n", p.Version, p.Mode, p.Driver)
	if p.Addr == "" {
		fmt.Printf("Listening on port %d\n", p.Port)
	} else {
		fmt.Printf("Listening on %s:%d\n", p.Addr, p.Port)
	}
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
