package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lhdbsbz/deskbot/internal/kb"
)

func newKBCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "kb",
		Short: "Query the knowledge base",
	}
	cmd.PersistentFlags().StringVar(&file, "file", "", "Knowledge base file (default: knowledgeBase.path from config).")

	open := func(cmd *cobra.Command) (*kb.Store, error) {
		path := file
		if path == "" {
			flagPath, _ := cmd.Flags().GetString("config")
			cfg, _, err := loadConfig(flagPath)
			if err != nil {
				return nil, err
			}
			path = cfg.KnowledgeBase.Path
		}
		return kb.Open(path, nil)
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "lookup <code>",
		Short: "Show the entry for an error code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := open(cmd)
			if err != nil {
				return err
			}
			e, ok, err := store.Lookup(context.Background(), args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no entry for code %q", args[0])
			}
			printEntry(cmd.OutOrStdout(), e)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "search <keyword>",
		Short: "Search entries by keyword",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := open(cmd)
			if err != nil {
				return err
			}
			hits, err := store.Search(context.Background(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "%d result(s)\n", len(hits))
			for _, e := range hits {
				_, _ = fmt.Fprintf(out, "[%s] %s\n", e.Code, e.Title)
			}
			return nil
		},
	})
	return cmd
}

func printEntry(w io.Writer, e kb.Entry) {
	_, _ = fmt.Fprintf(w, "[%s] %s\n", e.Code, e.Title)
	if e.Description != "" {
		_, _ = fmt.Fprintln(w, e.Description)
	}
	for i, step := range e.Steps {
		_, _ = fmt.Fprintf(w, "%d. %s\n", i+1, step)
	}
}
