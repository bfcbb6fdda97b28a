// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	cmd := &cobra.Command{
		Use:   "pdnskafka",
		Short: "Passive DNS feed publisher for Kafka",
		Long: `Passive DNS feed publisher for Kafka.

Publishes serialized passive DNS records to two Kafka
topics, one for resolved queries and one for NXDOMAIN
responses. Brokers come from the configuration file or
are discovered through ZooKeeper.
`,
		SilenceUsage: true,
	}
	cmd.AddCommand(newRunCommand(), newBrokersCommand())

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
