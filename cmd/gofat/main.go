// Command gofat mounts a FAT12/16/32 image and lets you list, stat, and
// print files from it without ever writing back to the image.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gofatfs/gofat"
)

var variantFlag string

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	if err := newRootCmd(logger.Sugar()).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(log *zap.SugaredLogger) *cobra.Command {
	root := &cobra.Command{
		Use:   "gofat",
		Short: "Read-only explorer for FAT12/16/32 volumes",
	}
	root.PersistentFlags().StringVar(&variantFlag, "variant", "fat32", "fat12, fat16, or fat32")

	root.AddCommand(newLsCmd(log))
	root.AddCommand(newCatCmd(log))
	root.AddCommand(newStatCmd(log))

	return root
}

func parseVariant(s string) (gofat.Variant, error) {
	switch s {
	case "fat12":
		return gofat.FAT12, nil
	case "fat16":
		return gofat.FAT16, nil
	case "fat32":
		return gofat.FAT32, nil
	default:
		return 0, fmt.Errorf("unknown variant %q, want fat12, fat16, or fat32", s)
	}
}

func mount(log *zap.SugaredLogger, imagePath string) (*gofat.Volume, func(), error) {
	variant, err := parseVariant(variantFlag)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Open(imagePath)
	if err != nil {
		return nil, nil, err
	}

	vol, err := gofat.Open(gofat.NewReaderAtByteSource(f), variant)
	if err != nil {
		f.Close()
		return nil, nil, err
	}

	log.Infow("mounted volume", "path", imagePath, "variant", variant.String(), "label", vol.Label())
	return vol, func() { f.Close() }, nil
}

func newLsCmd(log *zap.SugaredLogger) *cobra.Command {
	return &cobra.Command{
		Use:   "ls IMAGE [PATH]",
		Short: "Walk the volume (or a subtree) and print every entry",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			vol, closeFn, err := mount(log, args[0])
			if err != nil {
				return err
			}
			defer closeFn()

			root := "/"
			if len(args) == 2 {
				root = args[1]
			}

			return afero.Walk(vol, root, func(walkPath string, info os.FileInfo, err error) error {
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-40s dir=%-5v size=%d\n", walkPath, info.IsDir(), info.Size())
				return nil
			})
		},
	}
}

func newCatCmd(log *zap.SugaredLogger) *cobra.Command {
	return &cobra.Command{
		Use:   "cat IMAGE PATH",
		Short: "Print a file's contents to stdout",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			vol, closeFn, err := mount(log, args[0])
			if err != nil {
				return err
			}
			defer closeFn()

			file, err := vol.Open(args[1])
			if err != nil {
				return err
			}
			defer file.Close()

			_, err = io.Copy(cmd.OutOrStdout(), file)
			return err
		},
	}
}

func newStatCmd(log *zap.SugaredLogger) *cobra.Command {
	return &cobra.Command{
		Use:   "stat IMAGE PATH",
		Short: "Print attributes of one entry",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			vol, closeFn, err := mount(log, args[0])
			if err != nil {
				return err
			}
			defer closeFn()

			info, err := vol.Stat(args[1])
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "name:     %s\nsize:     %d\ndir:      %v\nmode:     %s\nmodtime:  %s\n",
				info.Name(), info.Size(), info.IsDir(), info.Mode(), info.ModTime())
			return nil
		},
	}
}
