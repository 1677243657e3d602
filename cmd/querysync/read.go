package main

import (
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/vango-dev/querysync/internal/errors"
	"github.com/vango-dev/querysync/pkg/snapshot"
	"github.com/vango-dev/querysync/pkg/urlsync"
)

func readCmd(flags *globalFlags) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "read <url>",
		Short: "Print the state a URL decodes to",
		Long: `Decode a URL against the configured schema and print the resulting
values, the URL after missing defaults are written into it, and any
parse or validation failures.

Examples:
  querysync read '/items?page=2&tags=a&tags=b'
  querysync read 'https://example.com/?page=x' -o text`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			schema, err := cfg.Schema()
			if err != nil {
				return err
			}
			opts, err := cfg.Options()
			if err != nil {
				return err
			}

			res, err := urlsync.Apply(cmd.Context(), args[0], schema, nil, nil, opts...)
			if err != nil {
				return err
			}
			return writeResult(cmd.OutOrStdout(), output, schema, res)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "json", "Output format: json or text")

	return cmd
}

// writeResult prints res as indented JSON or as aligned text.
func writeResult(w io.Writer, format string, schema *snapshot.Schema, res *urlsync.Result) error {
	switch format {
	case "json":
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err

	case "text":
		fmt.Fprintf(w, "url: %s\n", res.URL)
		for _, key := range schema.Keys() {
			v, ok := res.Values.Get(key)
			if !ok {
				fmt.Fprintf(w, "  %-12s (absent)\n", key)
				continue
			}
			fmt.Fprintf(w, "  %-12s %v\n", key, v)
		}
		for _, r := range res.Errors {
			fmt.Fprintf(w, "! %s %s: %s\n", r.Code, r.Key, r.Message)
		}
		return nil
	}

	return errors.New("Q040").
		WithDetail(`unknown output format "` + format + `"`).
		WithSuggestion("Use json or text")
}
