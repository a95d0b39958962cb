package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cebartling/otherworlds-rpg/internal/publish"
)

var tailSubject string

func init() {
	tailCmd.Flags().StringVar(&tailSubject, "subject", publish.DefaultSubjectPrefix+".>", "NATS subject filter")
	rootCmd.AddCommand(tailCmd)
}

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Print committed events from the bus as they arrive",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sub, err := publish.NewNATSSubscriber(cfg.NATSURL)
		if err != nil {
			return err
		}
		defer sub.Close()

		ch, cancel, err := sub.Subscribe(tailSubject)
		if err != nil {
			return err
		}
		defer cancel()

		ctx := cmd.Context()
		for {
			select {
			case <-ctx.Done():
				return nil
			case evt, ok := <-ch:
				if !ok {
					return nil
				}
				line, err := json.Marshal(evt)
				if err != nil {
					continue
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(line))
			}
		}
	},
}
