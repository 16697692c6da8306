package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bft-labs/tagrelay/internal/catalog"
	"github.com/bft-labs/tagrelay/internal/cliconfig"
	"github.com/bft-labs/tagrelay/internal/domain"
)

func newCatalogCmd(cfg *cliconfig.Config, cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect and edit the item catalog",
	}

	load := func(c *cobra.Command) (*catalog.Catalog, error) {
		if err := resolveConfig(c, cfg, *cfgPath); err != nil {
			return nil, err
		}
		return catalog.Load(cfg.CatalogFile, nil)
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list [objects|locations]",
		Short: "List catalog items",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			types := []domain.ItemType{domain.Object, domain.Location}
			if len(args) == 1 {
				typ, err := domain.ParseItemType(args[0])
				if err != nil {
					return err
				}
				types = []domain.ItemType{typ}
			}

			cat, err := load(c)
			if err != nil {
				return err
			}
			out := c.OutOrStdout()
			for _, typ := range types {
				items, err := cat.Items(typ)
				if err != nil {
					return err
				}
				for _, id := range cat.IDs(typ) {
					fmt.Fprintf(out, "%s\t%s\t%s\n", typ, id, formatData(items[id]))
				}
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "add <object|location> <id> [key=value...]",
		Short: "Add or replace a catalog item",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(c *cobra.Command, args []string) error {
			typ, err := domain.ParseItemType(args[0])
			if err != nil {
				return err
			}
			data, err := parseData(args[2:])
			if err != nil {
				return err
			}

			cat, err := load(c)
			if err != nil {
				return err
			}
			if err := cat.Add(args[1], typ, data); err != nil {
				return err
			}
			if err := cat.Save(); err != nil {
				return err
			}
			fmt.Fprintf(c.OutOrStdout(), "added %s %s to %s\n", typ, args[1], cat.Path())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <object|location> <id>",
		Short: "Remove a catalog item",
		Args:  cobra.ExactArgs(2),
		RunE: func(c *cobra.Command, args []string) error {
			typ, err := domain.ParseItemType(args[0])
			if err != nil {
				return err
			}

			cat, err := load(c)
			if err != nil {
				return err
			}
			removed, err := cat.Remove(args[1], typ)
			if err != nil {
				return err
			}
			if !removed {
				return fmt.Errorf("%s %s: %w", typ, args[1], domain.ErrUnknownItem)
			}
			if err := cat.Save(); err != nil {
				return err
			}
			fmt.Fprintf(c.OutOrStdout(), "removed %s %s from %s\n", typ, args[1], cat.Path())
			return nil
		},
	})

	return cmd
}

// parseData turns key=value arguments into item data. Values that parse as
// bool, integer or float keep that type; everything else is a string.
func parseData(args []string) (map[string]any, error) {
	data := make(map[string]any, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid item field %q, want key=value", arg)
		}
		data[key] = parseValue(value)
	}
	return data, nil
}

func parseValue(s string) any {
	if s == "true" || s == "false" {
		return s == "true"
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

func formatData(data map[string]any) string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, data[k]))
	}
	return strings.Join(parts, " ")
}
