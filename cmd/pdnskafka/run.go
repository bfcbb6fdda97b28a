// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/zyxtarmo/pdnskafka"
)

// maxLineBytes bounds a single input line.
const maxLineBytes = 4 << 20

type runOptions struct {
	metricsAddr string
}

func newRunCommand() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run <config>",
		Short: "Publish records read from stdin",
		Long: `Publish records read from stdin.

Each input line is a stream name and a payload separated
by a tab, for example:

  query	<payload>
  nxdomain	<payload>
`,
		Example: `  pdnskafka run config.toml < records.tsv`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), args[0], opts, os.Stdin)
		},
	}
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics", "", "address to serve Prometheus metrics on, e.g. :9100")
	return cmd
}

func run(ctx context.Context, configFile string, opts runOptions, in io.Reader) error {
	cfg, err := pdnskafka.LoadConfig(configFile)
	if err != nil {
		return err
	}

	log, closeLog, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	feed := &pdnskafka.Feed{
		Config:     cfg,
		Logger:     pdnskafka.NewLogrusLogger(log),
		Registerer: registry,
	}

	if err := feed.Start(ctx); err != nil {
		return fmt.Errorf("starting feed: %w", err)
	}
	defer func() {
		// Stop gets its own bound; ctx is already canceled on a signal.
		feed.Stop(context.Background())
	}()

	if opts.metricsAddr != "" {
		srv := &http.Server{
			Addr:              opts.metricsAddr,
			Handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.WithError(err).Error("metrics listener failed")
			}
		}()
		defer srv.Close()
	}

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info("interrupted, shutting down")
			return nil

		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			publishLine(ctx, feed, log, line)
		}
	}
}

// publishLine publishes one "stream<TAB>payload" line.
func publishLine(ctx context.Context, feed *pdnskafka.Feed, log *logrus.Logger, line string) {
	if line == "" {
		return
	}

	name, payload, ok := strings.Cut(line, "\t")
	if !ok {
		log.WithField("line", line).Warn("input line has no stream name, skipped")
		return
	}

	stream, err := parseStream(name)
	if err != nil {
		log.WithError(err).Warn("input line skipped")
		return
	}

	record := []byte(payload)
	feed.PublishContext(ctx, stream, record, len(record))
}

func parseStream(name string) (pdnskafka.Stream, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case pdnskafka.StreamQuery.String():
		return pdnskafka.StreamQuery, nil
	case pdnskafka.StreamNXDomain.String():
		return pdnskafka.StreamNXDomain, nil
	}
	return 0, fmt.Errorf("unknown stream %q", name)
}

// newLogger builds the diagnostic logger and, if configured, attaches the
// operational syslog sink.
func newLogger(cfg pdnskafka.Config) (*logrus.Logger, func(), error) {
	log := logrus.New()
	log.SetOutput(os.Stderr)

	if cfg.LogLevel != "" {
		level, err := logrus.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, nil, err
		}
		log.SetLevel(level)
	}

	if !cfg.Syslog.Enable {
		return log, func() {}, nil
	}

	hook, err := pdnskafka.NewSyslogHook(cfg.Syslog.Network, cfg.Syslog.Address, cfg.Syslog.Tag)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to syslog: %w", err)
	}
	log.AddHook(hook)

	return log, func() { _ = hook.Close() }, nil
}
