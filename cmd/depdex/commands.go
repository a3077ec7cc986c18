package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sukryu/depdex/pkg/adapters/npmregistry"
	"github.com/sukryu/depdex/pkg/application"
	"github.com/sukryu/depdex/pkg/config"
	"github.com/sukryu/depdex/pkg/domain"
)

func newStoreCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "store <file.json>...",
		Short: "Store package manifests (a JSON object or array per file)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var pkgs []domain.Package
			for _, path := range args {
				batch, err := readPackages(path)
				if err != nil {
					return err
				}
				pkgs = append(pkgs, batch...)
			}
			if err := a.commands.ExecuteCommand(cmd.Context(), &application.StorePackagesCommand{Packages: pkgs}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stored %d packages\n", len(pkgs))
			return nil
		},
	}
}

// readPackages decodes one manifest or an array of manifests from path.
func readPackages(path string) ([]domain.Package, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var pkgs []domain.Package
		if err := json.Unmarshal(data, &pkgs); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		return pkgs, nil
	}
	var pkg domain.Package
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return []domain.Package{pkg}, nil
}

func newQueryCommand(a *app) *cobra.Command {
	var opts domain.QueryOptions
	cmd := &cobra.Command{
		Use:   "query <dependency> <range>",
		Short: "List packages whose declared range for dependency overlaps range",
		Long:  "Prints one JSON document per line. Use the last printed id (name@version, or name with --latest) as --gt to fetch the next page.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := a.queries.ExecuteQuery(cmd.Context(), &application.DependantsQuery{
				Dependency: args[0],
				Range:      args[1],
				Options:    opts,
			})
			if err != nil {
				return err
			}
			return writeLines(cmd.OutOrStdout(), result.([]domain.Package))
		},
	}
	cmd.Flags().BoolVar(&opts.DevDependencies, "dev", false, "search devDependencies instead of dependencies")
	cmd.Flags().BoolVar(&opts.Latest, "latest", false, "only consider the latest version of each package")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of results (0 for all)")
	cmd.Flags().StringVar(&opts.GT, "gt", "", "resume after this package id")
	return cmd
}

func writeLines(w io.Writer, pkgs []domain.Package) error {
	enc := json.NewEncoder(w)
	for _, pkg := range pkgs {
		if err := enc.Encode(pkg); err != nil {
			return err
		}
	}
	return nil
}

func newGetCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <name> [version]",
		Short: "Print a stored manifest (the latest one without version)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := &application.GetPackageQuery{Name: args[0]}
			if len(args) == 2 {
				q.Version = args[1]
			}
			result, err := a.queries.ExecuteQuery(cmd.Context(), q)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}
}

func newLatestCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "latest <name>",
		Short: "Print the latest stored version of a package",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := a.queries.ExecuteQuery(cmd.Context(), &application.LatestVersionQuery{Name: args[0]})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), result)
			return nil
		},
	}
}

func newIngestCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <name>...",
		Short: "Fetch every version of packages from the npm registry and store them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ingester, err := npmregistry.New(a.cfg.RegistryConfig(), a.index, a.logger)
			if err != nil {
				return err
			}
			n, err := ingester.IngestAll(cmd.Context(), args)
			fmt.Fprintf(cmd.OutOrStdout(), "stored %d versions\n", n)
			return err
		},
	}
}

func newStatsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print index and store counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := a.queries.ExecuteQuery(cmd.Context(), &application.StatsQuery{})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}
}

// compacter is implemented by stores with on-demand compaction.
type compacter interface {
	ForceCompaction() error
}

func newCompactCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "compact",
		Short: "Flush and merge all on-disk tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ok := a.store.(compacter)
			if !ok {
				return fmt.Errorf("backend %q does not support compaction", a.cfg.Storage.Backend)
			}
			return c.ForceCompaction()
		},
	}
}

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:         "config",
		Short:       "Manage configuration files",
		Annotations: map[string]string{annotationNoStore: "true"},
	}
	cmd.AddCommand(&cobra.Command{
		Use:         "init <path>",
		Short:       "Write the default configuration to path",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{annotationNoStore: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.WriteDefault(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", args[0])
			return nil
		},
	})
	return cmd
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
