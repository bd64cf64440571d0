package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/coffersTech/actionlog/internal/storage"
	"github.com/spf13/cobra"
)

func newArchiveCommand() *cobra.Command {
	var dir string
	cmd := &cobra.Command{Use: "archive", Short: "Inspect files archived by retention sweeps"}
	cmd.PersistentFlags().StringVar(&dir, "dir", os.Getenv("ACTIONLOG_ARCHIVE_DIR"), "Archive directory")

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List archived files",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := storage.NewArchiver(dir)
			if err != nil {
				return err
			}
			defer a.Close()
			names, err := a.List()
			if err != nil {
				return err
			}
			for _, n := range names {
				fmt.Println(n)
			}
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "cat <name>",
		Short: "Decompress an archived file to stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := storage.NewArchiver(dir)
			if err != nil {
				return err
			}
			defer a.Close()
			path := args[0]
			if filepath.Base(path) == path {
				path = filepath.Join(a.Dir(), path)
			}
			raw, err := a.Open(path)
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(raw)
			return err
		},
	})
	return cmd
}
