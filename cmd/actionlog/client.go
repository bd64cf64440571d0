package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/coffersTech/actionlog/pkg/actionlog"
	"github.com/spf13/cobra"
)

func newClient(cmd *cobra.Command) (*actionlog.Client, error) {
	url, _ := cmd.Flags().GetString("server")
	return actionlog.New(actionlog.Options{ServerURL: url})
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newClientCommands() []*cobra.Command {
	return []*cobra.Command{
		newSendCommand(),
		newLogsCommand(),
		newFilesCommand(),
		newCleanupCommand(),
		newUploadCommand(),
		newStatsCommand(),
	}
}

func newSendCommand() *cobra.Command {
	var e actionlog.Entry
	var level, stream string
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send one entry immediately",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			e.Level = actionlog.Level(level)
			res, err := c.SendLog(cmd.Context(), e, stream)
			if err != nil {
				return err
			}
			fmt.Println(res.Message+":", res.FileName)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&e.UserName, "user", "", "User name")
	f.StringVar(&e.CompanyID, "company", "", "Company id")
	f.StringVar(&e.Event, "event", "", "Event name")
	f.StringVar(&e.Details, "details", "", "Free-text details")
	f.StringVar(&e.Timestamp, "timestamp", "", "ISO-8601 timestamp (default: server time)")
	f.StringVar(&level, "level", "info", "Level: info|warning|error")
	f.StringVar(&stream, "stream", actionlog.DefaultStream, "Target stream")
	return cmd
}

func newLogsCommand() *cobra.Command {
	var filter actionlog.Filter
	var level, since, until string
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Query indexed entries, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter.Level = actionlog.Level(level)
			for _, p := range []struct {
				val string
				dst *time.Time
			}{{since, &filter.Since}, {until, &filter.Until}} {
				if p.val == "" {
					continue
				}
				t, err := time.Parse(time.RFC3339, p.val)
				if err != nil {
					return fmt.Errorf("invalid time %q: %w", p.val, err)
				}
				*p.dst = t
			}
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			logs, err := c.Logs(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return printJSON(logs)
		},
	}
	f := cmd.Flags()
	f.StringVar(&level, "level", "", "Only this level")
	f.StringVar(&filter.UserName, "user", "", "Only this user")
	f.StringVar(&filter.CompanyID, "company", "", "Only this company")
	f.StringVar(&filter.Event, "event", "", "Event substring")
	f.StringVar(&since, "since", "", "RFC3339 lower bound")
	f.StringVar(&until, "until", "", "RFC3339 upper bound")
	f.IntVar(&filter.Limit, "limit", 0, "Maximum entries (0 means all)")
	return cmd
}

func newFilesCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "files", Short: "Manage stored log files"}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List log files",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			res, err := c.ListFiles(cmd.Context())
			if err != nil {
				return err
			}
			for _, name := range res.Files {
				fmt.Println(name)
			}
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "get <name>",
		Short: "Print a log file as stored",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			raw, err := c.GetFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(raw)
			return err
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a log file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			if err := c.DeleteFile(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Println("deleted:", args[0])
			return nil
		},
	})
	return cmd
}

func newCleanupCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Run a retention sweep now",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			res, err := c.Cleanup(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Println(res.Message)
			for _, name := range res.DeletedFiles {
				fmt.Println("  ", name)
			}
			return nil
		},
	}
}

func newUploadCommand() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "upload <file.json>",
		Short: "Import entries from a JSON file (one object or an array)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			entries, err := decodeEntries(data)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			res, err := c.Upload(cmd.Context(), entries, name)
			if err != nil {
				return err
			}
			fmt.Printf("%s: %d entries -> %s\n", res.Message, res.Count, res.FileName)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Target file name (default: generated)")
	return cmd
}

func decodeEntries(data []byte) ([]actionlog.Entry, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var entries []actionlog.Entry
		err := json.Unmarshal(data, &entries)
		return entries, err
	}
	var e actionlog.Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return []actionlog.Entry{e}, nil
}

func newStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show index statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			st, err := c.Stats(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(st)
		},
	}
}
