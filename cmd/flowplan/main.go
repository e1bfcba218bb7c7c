// Command flowplan is the reference CLI over the core planning engine
// (SPEC_FULL.md §1 "CLI"): dialect selection via --type grounded in the
// teacher's original cli.go, combined with the teacher's later
// github.com/jessevdk/go-flags option-struct style
// (cmd/mysqldef/mysqldef.go). Subcommands: plan, apply, render.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/k0kubun/pp/v3"
	"golang.org/x/term"

	"github.com/flowforge/flowplan/diff"
	"github.com/flowforge/flowplan/engine"
	enginemssql "github.com/flowforge/flowplan/engine/mssql"
	enginemysql "github.com/flowforge/flowplan/engine/mysql"
	enginepostgres "github.com/flowforge/flowplan/engine/postgres"
	enginesqlite "github.com/flowforge/flowplan/engine/sqlite"
	"github.com/flowforge/flowplan/environment"
	"github.com/flowforge/flowplan/internal/logging"
	"github.com/flowforge/flowplan/macro"
	"github.com/flowforge/flowplan/render"
	"github.com/flowforge/flowplan/snapshot"
	"github.com/flowforge/flowplan/sqlast"
	"github.com/flowforge/flowplan/state"
)

type options struct {
	Type           string `long:"type" description:"engine dialect: mysql, postgres, mssql, sqlite" default:"sqlite"`
	Host           string `short:"H" long:"host" description:"database host" default:"127.0.0.1"`
	Port           int    `short:"P" long:"port" description:"database port"`
	User           string `short:"u" long:"user" description:"database user"`
	Password       string `short:"p" long:"password" description:"database password"`
	PasswordPrompt bool   `long:"password-prompt" description:"prompt for the database password interactively"`
	Socket         string `short:"S" long:"socket" description:"unix socket path"`
	DbName         string `long:"db" description:"database/file name"`
	StateDB        string `long:"state-db" description:"sqlite path for the plan/promotion state store" default:"flowplan_state.db"`
	Config         string `long:"config" description:"YAML file with connection defaults"`
	Schema         string `long:"physical-schema" description:"physical schema snapshots materialize into" default:"sqlmesh"`
	Help           bool   `long:"help" description:"show this help"`

	Args struct {
		Command     string `positional-arg-name:"command" description:"plan, apply, or render"`
		ProjectDir  string `positional-arg-name:"project-dir" description:"directory of model/seed files"`
		Target      string `positional-arg-name:"target" description:"environment name (plan/apply) or model name (render)"`
	} `positional-args:"yes"`
}

func main() {
	logging.Init()

	var opts options
	parser := flags.NewParser(&opts, flags.None)
	parser.Usage = "[options] <plan|apply|render> <project-dir> <target>"
	if _, err := parser.ParseArgs(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
	if opts.Help {
		parser.WriteHelp(os.Stdout)
		os.Exit(0)
	}
	if opts.Args.Command == "" || opts.Args.ProjectDir == "" {
		parser.WriteHelp(os.Stdout)
		os.Exit(1)
	}

	fileCfg, err := loadConnectionConfig(opts.Config)
	if err != nil {
		log.Fatal(err)
	}
	cfg := mergeConnectionConfig(fileCfg, connectionConfig{
		Type: opts.Type, Host: opts.Host, Port: opts.Port, User: opts.User,
		Password: opts.Password, DbName: opts.DbName, Socket: opts.Socket, StateDB: opts.StateDB,
	})

	if opts.PasswordPrompt {
		fmt.Print("Enter Password: ")
		pass, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			log.Fatal(err)
		}
		cfg.Password = string(pass)
	}

	p, err := loadProject(opts.Args.ProjectDir)
	if err != nil {
		log.Fatal(err)
	}

	snapshots, err := buildSnapshots(p, opts.Schema)
	if err != nil {
		log.Fatal(err)
	}

	switch opts.Args.Command {
	case "plan":
		stateStore, err := state.OpenSQLiteStore(cfg.StateDB)
		if err != nil {
			log.Fatal(err)
		}
		defer stateStore.Close()
		runPlan(opts, snapshots, stateStore)
	case "apply":
		stateStore, err := state.OpenSQLiteStore(cfg.StateDB)
		if err != nil {
			log.Fatal(err)
		}
		defer stateStore.Close()
		drv, err := openEngine(cfg)
		if err != nil {
			log.Fatal(err)
		}
		defer drv.Close()
		runApply(opts, p, snapshots, stateStore, drv)
	case "render":
		runRender(opts, p)
	default:
		fmt.Printf("unknown command %q\n\n", opts.Args.Command)
		parser.WriteHelp(os.Stdout)
		os.Exit(1)
	}
}

func runPlan(opts options, snapshots map[string]*snapshot.Snapshot, store *state.SQLiteStore) {
	cd, err := diff.Create(opts.Args.Target, snapshots, store)
	if err != nil {
		log.Fatal(err)
	}
	printer := pp.New()
	printer.SetColoringEnabled(false)
	fmt.Println("-- Plan --")
	fmt.Printf("environment: %s\n", cd.Environment)
	fmt.Printf("added: %v\n", sortedBoolKeys(cd.Added))
	fmt.Printf("removed: %v\n", sortedBoolKeys(cd.Removed))
	fmt.Printf("directly modified: %v\n", directlyModifiedNames(cd))
	fmt.Println("new snapshots (creation order):")
	for _, s := range cd.NewSnapshots {
		printer.Println(s.Name + " -> " + s.TableName())
	}
}

func runApply(opts options, p *project, snapshots map[string]*snapshot.Snapshot, store *state.SQLiteStore, drv engine.Driver) {
	cd, err := diff.Create(opts.Args.Target, snapshots, store)
	if err != nil {
		log.Fatal(err)
	}
	if err := store.PushSnapshots(cd.NewSnapshots); err != nil {
		log.Fatal(err)
	}

	provider := &render.MapProvider{Models: p.Models, Tables: map[string]string{}}
	for name, s := range cd.Snapshots {
		provider.Tables[name] = s.TableName()
	}

	renderer := render.NewRenderer(macro.NewRegistry())
	now := time.Now()
	win := runWindow(now)

	queries := map[string]string{}
	for name, m := range p.Models {
		if m.Query == nil {
			continue
		}
		// Each model renders against its own cron-snapped window
		// (render.WindowForModel), not the environment's calendar-day
		// bound used for env.Start/env.End below — a minute-cron model
		// must see a minute-wide window, not a day-wide one.
		modelWin, err := render.WindowForModel(m, now)
		if err != nil {
			log.Fatal(err)
		}
		rendered, err := renderer.Render(m, modelWin, render.Options{Provider: provider})
		if err != nil {
			log.Fatal(err)
		}
		queries[name] = sqlast.String(rendered, m.Dialect)
	}

	snapshotInfos := make([]state.SnapshotTableInfo, 0, len(cd.Snapshots))
	for name, s := range cd.Snapshots {
		snapshotInfos = append(snapshotInfos, state.SnapshotTableInfo{Name: name, Fingerprint: s.Fingerprint, TableName: s.TableName()})
	}
	env := &state.Environment{Name: opts.Args.Target, Snapshots: snapshotInfos, Start: win.Start.Format(time.RFC3339), End: win.End.Format(time.RFC3339), PreviousPlanID: cd.PreviousPlanID}

	tr := &environment.Transitioner{Engine: drv, Writer: store, Reader: store, Concurrency: 4}
	ctx := context.Background()
	if err := tr.Promote(ctx, env, cd.Snapshots, queries, false); err != nil {
		log.Fatal(err)
	}
	if removed := sortedBoolKeys(cd.Removed); len(removed) > 0 {
		if err := tr.Demote(ctx, opts.Args.Target, removed); err != nil {
			log.Fatal(err)
		}
	}
	slog.Info("apply: done", slog.String("environment", opts.Args.Target))
}

func runRender(opts options, p *project) {
	if opts.Args.Target == "" {
		fmt.Println("render requires a model name in place of <target>")
		os.Exit(1)
	}
	m, ok := p.Models[opts.Args.Target]
	if !ok {
		log.Fatalf("no such model: %s", opts.Args.Target)
	}
	if m.Query == nil {
		log.Fatalf("model %s has no renderable query (seed model)", opts.Args.Target)
	}
	renderer := render.NewRenderer(macro.NewRegistry())
	provider := &render.MapProvider{Models: p.Models}
	win, err := render.WindowForModel(m, time.Now())
	if err != nil {
		log.Fatal(err)
	}
	rendered, err := renderer.Render(m, win, render.Options{Provider: provider})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(sqlast.String(rendered, m.Dialect))
}

// runWindow is the single-day run window [00:00:00, 23:59:59.999] for
// the day containing now (spec.md §6: "inclusive on both ends; end_date
// for a daily window is 23:59:59.999").
func runWindow(now time.Time) render.Window {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	end := day.Add(24*time.Hour - time.Millisecond)
	return render.Window{Start: day, End: end, Latest: end}
}

func openEngine(cfg connectionConfig) (engine.Driver, error) {
	switch cfg.Type {
	case "mysql":
		return enginemysql.NewDriver(enginemysql.Config{Host: cfg.Host, Port: cfg.Port, User: cfg.User, Password: cfg.Password, DbName: cfg.DbName, Socket: cfg.Socket})
	case "postgres", "postgresql":
		return enginepostgres.NewDriver(enginepostgres.Config{Host: cfg.Host, Port: cfg.Port, User: cfg.User, Password: cfg.Password, DbName: cfg.DbName})
	case "mssql":
		return enginemssql.NewDriver(enginemssql.Config{Host: cfg.Host, Port: cfg.Port, User: cfg.User, Password: cfg.Password, DbName: cfg.DbName})
	case "sqlite", "":
		return enginesqlite.NewDriver(cfg.DbName)
	default:
		return nil, fmt.Errorf("unknown engine type %q", cfg.Type)
	}
}
