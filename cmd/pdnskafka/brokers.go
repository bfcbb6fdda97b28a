// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zyxtarmo/pdnskafka"
)

func newBrokersCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "brokers <config>",
		Short:   "Print the resolved broker set",
		Example: `  pdnskafka brokers config.toml`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := pdnskafka.LoadConfig(args[0])
			if err != nil {
				return err
			}

			log, closeLog, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer closeLog()

			brokers, err := pdnskafka.ResolveBrokers(cfg, pdnskafka.NewLogrusLogger(log))
			if err != nil {
				return err
			}
			for _, b := range brokers {
				fmt.Fprintln(cmd.OutOrStdout(), b.String())
			}
			return nil
		},
	}
}
