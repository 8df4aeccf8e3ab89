package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/CTAG07/epptmpl/pkg/pathmap"
	"github.com/CTAG07/epptmpl/pkg/templating"
	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"
)

// app carries the global flags shared by every command.
type app struct {
	configPath  string
	templateDir string
	logLevel    string
}

// overrides applies command line flags on top of a loaded config.
func (a *app) overrides(c *Config) {
	if a.templateDir != "" {
		c.Server.TemplateDir = a.templateDir
	}
	if a.logLevel != "" {
		c.Server.LogLevel = a.logLevel
	}
}

// open loads the configuration and builds the template manager for a
// one-shot command.
func (a *app) open() (*templating.TemplateManager, func() error, error) {
	config, err := LoadConfig(a.configPath)
	if err != nil {
		return nil, nil, err
	}
	a.overrides(config)
	return openManager(config, newLogger(config.Server.LogLevel))
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "epptmpl",
		Short: "Render EPP request documents from templates",
		Long: `epptmpl compiles XML request templates and renders them with data.

TEMPLATES
  render <id>           Render a template to stdout
    --data, -d <file>   Data file (YAML or JSON, "-" for stdin)
    --set key=value     Set a data value, dotted keys nest
    --output, -o <file> Write the document to a file
  list                  List available templates
  cache clear           Remove every compiled template

RESPONSES
  flatten <file>        Print a response document as flat dotted keys
    --get <key>         Print one key, or a prefix ending in .*

SERVER
  serve                 Run the preview HTTP API`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "./config.json", "Path to the config file")
	root.PersistentFlags().StringVarP(&a.templateDir, "templates", "t", "", "Template directory (default: bundled templates)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error")

	root.AddCommand(
		a.renderCmd(),
		a.listCmd(),
		a.cacheCmd(),
		flattenCmd(),
		a.serveCmd(),
	)
	return root
}

func (a *app) renderCmd() *cobra.Command {
	var (
		dataPath string
		sets     []string
		output   string
	)
	cmd := &cobra.Command{
		Use:   "render <id>",
		Short: "Render a template",
		Long: `Render a template with the given data and print the normalized document.

Examples:
  epptmpl render domain/check --set 'names=[example.com, example.net]'
  epptmpl render domain/info -d info.yaml -o request.xml
  echo '{"ids": ["C1"]}' | epptmpl render contact/check -d -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := loadData(dataPath, cmd.InOrStdin())
			if err != nil {
				return err
			}
			if err = applySets(data, sets); err != nil {
				return err
			}

			tm, closeStore, err := a.open()
			if err != nil {
				return err
			}
			defer func() { _ = closeStore() }()

			out, err := tm.RenderContext(cmd.Context(), args[0], data)
			if err != nil {
				return err
			}

			if output == "" {
				_, err = io.WriteString(cmd.OutOrStdout(), out)
				return err
			}
			if err = atomic.WriteFile(output, bytes.NewReader([]byte(out))); err != nil {
				return fmt.Errorf("failed to write output: %w", err)
			}
			success(cmd.ErrOrStderr(), "Rendered %s to %s", args[0], output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&dataPath, "data", "d", "", "Data file (YAML or JSON, - for stdin)")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "Set a data value (key=value, repeatable)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the document to a file")
	return cmd
}

func (a *app) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List available templates",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tm, closeStore, err := a.open()
			if err != nil {
				return err
			}
			defer func() { _ = closeStore() }()

			ids, err := tm.Templates()
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				warning(cmd.ErrOrStderr(), "No templates found")
				return nil
			}
			header(cmd.ErrOrStderr(), "%d templates", len(ids))
			for _, id := range ids {
				plain(cmd.OutOrStdout(), "%s", id)
			}
			return nil
		},
	}
}

func (a *app) cacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage compiled templates",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove every compiled template",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tm, closeStore, err := a.open()
			if err != nil {
				return err
			}
			defer func() { _ = closeStore() }()

			if err = tm.ClearCacheContext(cmd.Context()); err != nil {
				return err
			}
			success(cmd.ErrOrStderr(), "Cache cleared (namespace %s)", tm.GetConfig().CacheNamespace)
			return nil
		},
	})
	return cmd
}

func flattenCmd() *cobra.Command {
	var (
		get    string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "flatten <file>",
		Short: "Print a response document as flat dotted keys",
		Long: `Decode an XML response and print it as flat dotted keys.

Examples:
  epptmpl flatten response.xml
  epptmpl flatten response.xml --get epp.response.result.msg
  epptmpl flatten - --get 'epp.response.resData.*' --json < response.xml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}

			tree, err := pathmap.FromXML(r)
			if err != nil {
				return err
			}
			flat := pathmap.Flatten(tree)

			var result any = flat
			if get != "" {
				result = pathmap.Get(get, flat, nil)
				if result == nil {
					return fmt.Errorf("key %q not found", get)
				}
			}
			return printFlat(cmd.OutOrStdout(), result, asJSON)
		},
	}
	cmd.Flags().StringVar(&get, "get", "", "Print a single key, or every key under a prefix ending in .*")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func (a *app) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the preview HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(a.configPath, a.overrides)
		},
	}
}

// printFlat writes a flattened map one "key = value" line per entry in key
// order, or v as indented JSON.
func printFlat(w io.Writer, v any, asJSON bool) error {
	m, isMap := v.(map[string]any)
	if asJSON || !isMap {
		if s, ok := v.(string); ok && !asJSON {
			plain(w, "%s", s)
			return nil
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		switch val := m[k].(type) {
		case string:
			plain(w, "%s = %s", k, val)
		default:
			data, err := json.Marshal(val)
			if err != nil {
				return err
			}
			plain(w, "%s = %s", k, data)
		}
	}
	return nil
}

// describeError prints a one-line explanation for a failed command, naming
// the kind of render failure when there is one.
func describeError(w io.Writer, err error) {
	var (
		lookupErr *templating.LookupError
		exprErr   *templating.ExpressionError
		docErr    *templating.DocumentFormatError
	)
	switch {
	case errors.As(err, &lookupErr):
		failure(w, "Template not found: %v", err)
	case errors.As(err, &exprErr):
		failure(w, "Expression failed: %v", err)
	case errors.As(err, &docErr):
		failure(w, "Rendered document is malformed: %v", err)
	default:
		failure(w, "%v", err)
	}
}
