package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/sukryu/depdex/pkg/adapters/lsmtree"
	"github.com/sukryu/depdex/pkg/adapters/memdb"
	"github.com/sukryu/depdex/pkg/application"
	"github.com/sukryu/depdex/pkg/config"
	"github.com/sukryu/depdex/pkg/domain"
	"github.com/sukryu/depdex/pkg/ports"
	"github.com/sukryu/depdex/pkg/utils"
)

// annotationNoStore marks commands that run without opening the store.
const annotationNoStore = "depdex/no-store"

// app holds what the subcommands share once the store is open.
type app struct {
	configPath string

	cfg      *config.Config
	store    ports.KVStore
	index    *domain.Index
	commands *application.CommandHandler
	queries  *application.QueryHandler
	logger   utils.Logger
}

func main() {
	os.Exit(run())
}

func run() int {
	defer klog.Flush()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := &app{logger: utils.NewKlogLogger("depdex")}
	defer a.close()

	if err := newRootCommand(a).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "depdex",
		Short:         "Index npm packages by the version ranges they declare",
		Long:          "depdex stores npm package manifests in a sorted key-value store and answers which packages depend on a version range of another package.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations[annotationNoStore] != "" {
				return nil
			}
			return a.open()
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "YAML config file (defaults and DEPDEX_* environment apply otherwise)")

	// klog 플래그(-v, --logtostderr 등)를 cobra에 등록
	klogFlags := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(klogFlags)
	root.PersistentFlags().AddGoFlagSet(klogFlags)

	root.AddCommand(
		newStoreCommand(a),
		newQueryCommand(a),
		newGetCommand(a),
		newLatestCommand(a),
		newIngestCommand(a),
		newStatsCommand(a),
		newCompactCommand(a),
		newConfigCommand(),
	)
	return root
}

// open loads the configuration and wires store, index and handlers.
func (a *app) open() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	switch cfg.Storage.Backend {
	case config.BackendMemory:
		a.store = memdb.New(memdb.Config{})
	default:
		tree, err := lsmtree.NewLSMTree(cfg.LSMConfig())
		if err != nil {
			return fmt.Errorf("open store at %s: %w", cfg.Storage.Path, err)
		}
		a.store = tree
	}
	a.logger.Debug("store opened", "backend", cfg.Storage.Backend, "path", cfg.Storage.Path)

	a.index, err = domain.NewIndex(cfg.IndexConfig(), a.store, a.logger)
	if err != nil {
		return err
	}
	a.commands = application.NewCommandHandler(a.index, a.logger)
	a.queries = application.NewQueryHandler(a.index, a.logger)
	return nil
}

func (a *app) close() {
	if a.store == nil {
		return
	}
	if a.commands != nil {
		a.commands.Wait()
		a.queries.Wait()
	}
	if err := a.store.Close(); err != nil {
		a.logger.Error(err, "failed to close store")
	}
	a.store = nil
}
