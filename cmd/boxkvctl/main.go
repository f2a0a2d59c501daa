// Command boxkvctl is a CLI front end for the BoxKV storage engine,
// exercising put/get/delete/flush/recover/scan against a data directory.
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/box-hippopotamus/box-kv/internal/engine"
	"github.com/box-hippopotamus/box-kv/internal/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	dataDir        string
	memtableSizeMB int
)

func openEngine(cmd *cobra.Command) (*engine.Engine, func(), error) {
	logger, err := zap.NewProduction()
	if err != nil {
		return nil, nil, fmt.Errorf("boxkvctl: build logger: %w", err)
	}
	e, err := engine.Open(storage.Config{DataDir: dataDir, MemtableSizeMB: memtableSizeMB}, logger)
	if err != nil {
		logger.Sync()
		return nil, nil, err
	}
	cleanup := func() {
		e.Close()
		logger.Sync()
	}
	return e, cleanup, nil
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "boxkvctl",
		Short: "Inspect and operate a BoxKV data directory",
	}
	root.PersistentFlags().StringVar(&dataDir, "data-dir", "boxkv-data", "data directory to operate on")
	root.PersistentFlags().IntVar(&memtableSizeMB, "memtable-size-mb", 64, "memtable flush threshold in MiB")

	root.AddCommand(newPutCmd(), newPutExpiringCmd(), newGetCmd(), newDeleteCmd(), newFlushCmd(), newRecoverCmd(), newScanCmd())
	return root
}

func newPutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "put <key> <value>",
		Short: "write a key/value pair",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, cleanup, err := openEngine(cmd)
			if err != nil {
				return err
			}
			defer cleanup()
			return e.Put([]byte(args[0]), []byte(args[1]))
		},
	}
}

func newPutExpiringCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "put-expiring <key> <value> <expire_at_unix_seconds>",
		Short: "write a key/value pair that carries an expire_at timestamp",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			expireAt, err := parseInt64(args[2])
			if err != nil {
				return fmt.Errorf("boxkvctl: expire_at: %w", err)
			}
			e, cleanup, err := openEngine(cmd)
			if err != nil {
				return err
			}
			defer cleanup()
			return e.PutExpiring([]byte(args[0]), []byte(args[1]), expireAt)
		},
	}
}

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "read the value for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, cleanup, err := openEngine(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			val, ok, err := e.Get([]byte(args[0]))
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "(not found)")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(val))
			return nil
		},
	}
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <key>",
		Short: "delete a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, cleanup, err := openEngine(cmd)
			if err != nil {
				return err
			}
			defer cleanup()
			return e.Delete([]byte(args[0]))
		},
	}
}

func newFlushCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "flush",
		Short: "force an immediate memtable flush",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, cleanup, err := openEngine(cmd)
			if err != nil {
				return err
			}
			defer cleanup()
			return e.Flush()
		},
	}
}

func newRecoverCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recover",
		Short: "open the data directory, replaying any pending WAL segments, then exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cleanup, err := openEngine(cmd)
			if err != nil {
				return err
			}
			defer cleanup()
			fmt.Fprintln(cmd.OutOrStdout(), "recovery complete")
			return nil
		},
	}
}

func newScanCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "scan <key...>",
		Short: "look up each of the given keys and print hit/miss",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, cleanup, err := openEngine(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			shown := 0
			for _, key := range args {
				if limit > 0 && shown >= limit {
					break
				}
				val, ok, err := e.Get([]byte(key))
				if err != nil {
					return err
				}
				if ok {
					fmt.Fprintf(cmd.OutOrStdout(), "%s=%s\n", key, string(val))
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "%s=(not found)\n", key)
				}
				shown++
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "stop after this many keys (0 = no limit)")
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "boxkvctl:", err)
		os.Exit(1)
	}
}

func parseInt64(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}
