package main

import (
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/vango-dev/querysync/internal/errors"
	"github.com/vango-dev/querysync/pkg/codec"
	"github.com/vango-dev/querysync/pkg/history"
	"github.com/vango-dev/querysync/pkg/snapshot"
	"github.com/vango-dev/querysync/pkg/urlsync"
)

func patchCmd(flags *globalFlags) *cobra.Command {
	var (
		output    string
		mode      string
		unset     []string
		jsonPatch string
	)

	cmd := &cobra.Command{
		Use:   "patch <url> [key=value...]",
		Short: "Apply changes to a URL and print the result",
		Long: `Mount the configured schema on a URL, apply one patch and print the
URL that would be committed together with the state read back from it.

Values are parsed with the key's type. Repeat a string-list key to set
several elements. --unset removes keys; --json takes the whole patch as
a JSON object instead.

Examples:
  querysync patch '/items?page=2' page=3
  querysync patch / tags=go tags=web --mode replace
  querysync patch '/?q=shoes' --unset q
  querysync patch / --json '{"page": 4, "tags": ["a"]}'`,
		Args: cobra.MinimumNArgs(1),
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

			changes, err := buildChanges(schema, args[1:], unset, jsonPatch)
			if err != nil {
				return err
			}

			var patchOpts []urlsync.PatchOption
			if mode != "" {
				m, err := history.ParseMode(mode)
				if err != nil {
					return err
				}
				patchOpts = append(patchOpts, urlsync.WithMode(m))
			}

			res, err := urlsync.Apply(cmd.Context(), args[0], schema, []snapshot.Values{changes}, patchOpts, opts...)
			if err != nil {
				return err
			}
			return writeResult(cmd.OutOrStdout(), output, schema, res)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "json", "Output format: json or text")
	cmd.Flags().StringVarP(&mode, "mode", "m", "", "History mode: push or replace (default from config)")
	cmd.Flags().StringSliceVar(&unset, "unset", nil, "Keys to remove")
	cmd.Flags().StringVar(&jsonPatch, "json", "", "Patch as a JSON object")

	return cmd
}

// buildChanges turns key=value arguments, --unset keys and a JSON object
// into one patch.
func buildChanges(schema *snapshot.Schema, pairs, unset []string, jsonPatch string) (snapshot.Values, error) {
	changes := snapshot.Values{}

	if jsonPatch != "" {
		var raw map[string]any
		if err := json.Unmarshal([]byte(jsonPatch), &raw); err != nil {
			return nil, errors.New("Q040").WithDetail("--json: " + err.Error())
		}
		changes = snapshot.Normalize(schema, raw)
	}

	for _, pair := range pairs {
		key, raw, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, errors.New("Q040").
				WithDetail(`"` + pair + `" is not key=value`).
				WithSuggestion("Write changes as key=value, e.g. page=2")
		}
		kind, ok := schema.Kind(key)
		if !ok {
			return nil, schema.CheckKey(key)
		}

		if kind == codec.KindStringList {
			list, _ := changes[key].([]string)
			changes[key] = append(list, raw)
			continue
		}
		v, err := codec.Decode(raw, kind, nil)
		if err != nil {
			return nil, errors.FromError(err, "Q001").WithKey(key)
		}
		changes[key] = v
	}

	for _, key := range unset {
		if err := schema.CheckKey(key); err != nil {
			return nil, err
		}
		changes[key] = nil
	}

	return changes, nil
}
