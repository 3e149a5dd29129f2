package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rxdi/cache/cache"
	"github.com/spf13/cobra"
)

// parseValue reads arg as JSON and falls back to the raw string.
func parseValue(arg string) any {
	var v any
	if err := json.Unmarshal([]byte(arg), &v); err != nil {
		return arg
	}
	return v
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatInterval(c cache.LayerConfig) string {
	if !c.Expires() {
		return "none"
	}
	return c.FlushInterval.String()
}

func newPutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "put <layer> <key> <value>",
		Short: "Store a value; JSON values are decoded, anything else is kept as a string",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			item := a.registry.Get(args[0]).Put(cache.Item{Key: args[1], Data: parseValue(args[2])})
			return printJSON(cmd.OutOrStdout(), item)
		},
	}
}

func newGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <layer> <key>",
		Short: "Print a cached value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			if !a.registry.Has(args[0]) {
				return errors.Newf("layer %q not found", args[0])
			}
			item, ok := a.registry.Get(args[0]).Get(args[1])
			if !ok {
				return errors.Newf("key %q not found in layer %q", args[1], args[0])
			}
			return printJSON(cmd.OutOrStdout(), item.Data)
		},
	}
}

func newRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <layer> [key]",
		Short: "Remove a key, or the whole layer when no key is given",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			if !a.registry.Has(args[0]) {
				return errors.Newf("layer %q not found", args[0])
			}
			l := a.registry.Get(args[0])
			if len(args) == 2 {
				l.RemoveItem(args[1])
				return nil
			}
			a.registry.Remove(l)
			return nil
		},
	}
}

func newLayersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "layers",
		Short: "List layers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			rows := make([][]string, 0)
			for _, l := range a.registry.Layers() {
				rows = append(rows, []string{
					l.Name(),
					strconv.Itoa(l.Len()),
					formatInterval(l.Config()),
					strconv.FormatBool(l.Config().Persist),
					l.CreatedAt().Format(time.RFC3339),
				})
			}
			printTable(cmd.OutOrStdout(), []string{"Layer", "Items", "Flush Interval", "Persist", "Created"}, rows)
			return nil
		},
	}
}

func newFlushCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flush",
		Short: "Empty every layer; with --force also forget them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			force, _ := cmd.Flags().GetBool("force")
			appFrom(cmd).registry.FlushCache(force)
			return nil
		},
	}
	cmd.Flags().Bool("force", false, "drop the persisted layer index as well")
	return cmd
}

func newFetchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch <layer> <url>",
		Short: "GET a JSON resource through the cache",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			noCache, _ := cmd.Flags().GetBool("no-cache")
			timeout, _ := cmd.Flags().GetDuration("timeout")
			fetcher := cache.NewHTTPFetcher()
			fetcher.Header = map[string][]string{"User-Agent": {"cachectl/" + Version}}

			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			v, err := cache.Fetch[any](ctx, a.registry.Get(args[0]), fetcher, args[1], !noCache)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), v)
		},
	}
	cmd.Flags().Bool("no-cache", false, "always hit the remote and refresh the cached copy")
	cmd.Flags().Duration("timeout", 30*time.Second, "request timeout")
	return cmd
}

func newWatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <layer> [key]",
		Short: "Stream changes to a layer, or to one key, until interrupted",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			l := a.registry.Get(args[0])
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			if len(args) == 2 {
				sub := l.SubscribeKey(args[1])
				defer sub.Close()
				return stream(ctx.Done(), sub.C(), func(item cache.Item) error {
					return printJSON(out, item)
				})
			}
			sub := l.Subscribe()
			defer sub.Close()
			return stream(ctx.Done(), sub.C(), func(items []cache.Item) error {
				fmt.Fprintf(out, "%s %d items\n", time.Now().Format(time.RFC3339), len(items))
				return printJSON(out, items)
			})
		},
	}
}

func stream[T any](done <-chan struct{}, ch <-chan T, fn func(T) error) error {
	for {
		select {
		case <-done:
			return nil
		case v, ok := <-ch:
			if !ok {
				return nil
			}
			if err := fn(v); err != nil {
				return err
			}
		}
	}
}
