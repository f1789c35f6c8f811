// Command sugar-upload uploads a directory of NFT assets to Bundlr or IPFS
// and records the resulting links in a cache file.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/shamank/sugar-go/pkg/blockchain"
	"github.com/shamank/sugar-go/pkg/config"
	"github.com/shamank/sugar-go/pkg/model"
	"github.com/shamank/sugar-go/pkg/sdk"
	"github.com/shamank/sugar-go/pkg/upload"
	"github.com/spf13/cobra"
)

var (
	green  = color.New(color.FgGreen, color.Bold).SprintFunc()
	red    = color.New(color.FgRed, color.Bold).SprintFunc()
	yellow = color.New(color.FgYellow, color.Bold).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
)

type options struct {
	configPath string
	assetsDir  string
	cachePath  string
	debug      bool
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "sugar-upload",
		Short:         "Upload NFT assets to decentralized storage",
		Version:       sdk.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "config.yaml", "Path to the config file")
	root.PersistentFlags().BoolVarP(&opts.debug, "debug", "d", false, "Debug logging")

	root.AddCommand(newUploadCommand(opts))
	root.AddCommand(newBalanceCommand(opts))
	return root
}

func newUploadCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Upload images, animations and metadata",
		Long: `Upload every asset in the assets directory that has no link in the cache yet.

Press Ctrl+C once to stop dispatching new uploads and wait for running ones;
the cache keeps every link received so far and a later run resumes from it.
Press Ctrl+C again to cancel running uploads.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			core, err := newCore(cmd.Context(), opts)
			if err != nil {
				return fail(cmd.ErrOrStderr(), err)
			}
			defer core.Close()

			core.Progress = progressPrinter(cmd.OutOrStdout())

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			interrupt := &upload.Interrupt{}
			stop := watchSignals(cmd.ErrOrStderr(), interrupt, cancel)
			defer stop()

			report, err := core.Upload(ctx, opts.assetsDir, opts.cachePath, interrupt)
			return summarize(cmd.OutOrStdout(), report, err)
		},
	}
	cmd.Flags().StringVarP(&opts.assetsDir, "assets", "a", "assets", "Directory holding the numbered assets")
	cmd.Flags().StringVar(&opts.cachePath, "cache", "cache.json", "Path to the upload cache")
	return cmd
}

func newBalanceCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "Show the Bundlr node balance and the funding wallet balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			core, err := newCore(cmd.Context(), opts)
			if err != nil {
				return fail(cmd.ErrOrStderr(), err)
			}
			defer core.Close()

			balance, err := core.Balance(cmd.Context())
			if err != nil {
				return fail(cmd.ErrOrStderr(), err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s wei) on %s\n",
				green("Balance:"), blockchain.WeiToEther(balance).String(), balance, gray(core.NodeURL()))

			wallet, err := core.WalletBalance(cmd.Context())
			if err != nil {
				return fail(cmd.ErrOrStderr(), err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s wei)\n",
				green("Wallet:"), blockchain.WeiToEther(wallet).String(), wallet)
			return nil
		},
	}
}

func newCore(ctx context.Context, opts *options) (*sdk.Core, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.debug {
		cfg.Debug = true
	}
	return sdk.New(ctx, cfg)
}

// watchSignals sets interrupt on the first SIGINT or SIGTERM and cancels the
// run on the second.
func watchSignals(w io.Writer, interrupt *upload.Interrupt, cancel context.CancelFunc) func() {
	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		for n := 0; ; n++ {
			select {
			case <-sigs:
				if n == 0 {
					_, _ = fmt.Fprintln(w, yellow("Interrupted, waiting for running uploads (Ctrl+C again to cancel)"))
					interrupt.Set()
					continue
				}
				cancel()
				return
			case <-done:
				return
			}
		}
	}()
	return func() {
		signal.Stop(sigs)
		close(done)
	}
}

func progressPrinter(w io.Writer) func(kind model.DataKind, done, total int) {
	return func(kind model.DataKind, done, total int) {
		_, _ = fmt.Fprintf(w, "\r%s %d/%d", gray("Uploading "+kind.String()+" files"), done, total)
		if done == total {
			_, _ = fmt.Fprintln(w)
		}
	}
}

// summarize prints the final status line and returns a non-nil error unless
// the upload was successful.
func summarize(w io.Writer, report *sdk.Report, err error) error {
	if report == nil {
		return fail(w, err)
	}
	switch {
	case report.Status == upload.Aborted || errors.Is(err, upload.ErrAborted):
		_, _ = fmt.Fprintf(w, "%s %d uploaded, %d failed\n", yellow("Upload aborted:"), report.Uploaded(), report.Failed())
		_, _ = fmt.Fprintln(w, gray("Run the command again to resume."))
		return errOr(err, upload.ErrAborted)
	case err != nil || report.Status == upload.Failed:
		_, _ = fmt.Fprintf(w, "%s %d uploaded, %d failed\n", red("Upload failed:"), report.Uploaded(), report.Failed())
		if err != nil {
			_, _ = fmt.Fprintln(w, gray(err.Error()))
		}
		return errOr(err, errors.New("upload failed"))
	default:
		_, _ = fmt.Fprintf(w, "%s %d files uploaded for %d assets\n", green("Upload successful:"), report.Uploaded(), report.Assets)
		return nil
	}
}

func fail(w io.Writer, err error) error {
	_, _ = fmt.Fprintf(w, "%s %v\n", red("Error:"), err)
	return err
}

func errOr(err, fallback error) error {
	if err != nil {
		return err
	}
	return fallback
}
