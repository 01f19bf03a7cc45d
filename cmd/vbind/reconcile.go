package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/vango-dev/vbind/internal/config"
	"github.com/vango-dev/vbind/internal/errors"
	"github.com/vango-dev/vbind/pkg/expr"
	"github.com/vango-dev/vbind/pkg/reactive"
	"github.com/vango-dev/vbind/pkg/reconcile"
	"github.com/vango-dev/vbind/pkg/vdom"
)

type reconcileOptions struct {
	prev string
	next string
	key  string
	text string
	tag  string
}

func reconcileCmd() *cobra.Command {
	opts := reconcileOptions{
		key: config.DefaultKeyField,
		tag: config.DefaultItemTag,
	}

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Show the patches between two lists",
		Long: `Reconcile two JSON arrays and print the patches and counts of each pass.

The first pass renders --prev from empty; the second moves it to --next.
Use --key - to key items by position.

Examples:
  vbind reconcile --prev a.json --next b.json
  vbind reconcile --prev a.json --next b.json --key sku --text name`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReconcile(cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.prev, "prev", "", "JSON array rendered first")
	cmd.Flags().StringVar(&opts.next, "next", "", "JSON array reconciled second")
	cmd.Flags().StringVarP(&opts.key, "key", "k", opts.key, "Key path relative to each item, or - for position")
	cmd.Flags().StringVarP(&opts.text, "text", "t", "", "Text path relative to each item (default: the whole item)")
	cmd.Flags().StringVar(&opts.tag, "tag", opts.tag, "Element tag for each item")
	cmd.MarkFlagRequired("prev")
	cmd.MarkFlagRequired("next")

	return cmd
}

func runReconcile(w io.Writer, opts reconcileOptions) error {
	prev, err := config.ReadItems(opts.prev)
	if err != nil {
		return err
	}
	next, err := config.ReadItems(opts.next)
	if err != nil {
		return err
	}

	rt := reactive.NewRuntime(reactive.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	list := vdom.NewList()
	rec := reconcile.New[*vdom.VNode](rt, list,
		reconcile.Key(reconcile.KeyByField(opts.key)),
		reconcile.Template(vdom.Element(opts.tag, nil)),
		reconcile.Logger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		reconcile.OnDiagnostic(func(d reconcile.Diagnostic) {
			fmt.Fprintf(w, "  ! %s\n", d)
		}),
		reconcile.Bind(func(node *vdom.VNode, scope *reconcile.Scope, item *reconcile.RenderedItem[*vdom.VNode]) {
			list.SetAttr(node, "data-key", fmt.Sprint(item.Key()))
			rt.Watch(func() {
				list.SetText(node, render(scope.Item(), opts.text))
			})
		}),
	)
	defer rec.Dispose()

	for i, items := range [][]any{prev, next} {
		fmt.Fprintf(w, "pass %d\n", i+1)
		if err := rec.Reconcile(items); err != nil {
			return errors.FromError(err, "VB102").
				WithSuggestion(fmt.Sprintf("Check that every item has a value at %q, or pass --key -.", opts.key))
		}
		for _, p := range list.Drain() {
			fmt.Fprintf(w, "  %s\n", p)
		}
		s := rec.Stats()
		fmt.Fprintf(w, "  created=%d reused=%d moved=%d removed=%d updated=%d\n",
			s.Created, s.Reused, s.Moved, s.Removed, s.Updated)
	}
	return nil
}

// render returns the text for item at path, or the whole item.
func render(item any, path string) string {
	if path == "" {
		return fmt.Sprint(item)
	}
	v, err := expr.Get(item, path)
	if err != nil || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}
