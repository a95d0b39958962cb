package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cebartling/otherworlds-rpg/internal/campaign"
	"github.com/cebartling/otherworlds-rpg/internal/session"
)

var (
	verifyManifestPath string
	verifyContentPath  string
)

func init() {
	verifyCmd.Flags().StringVar(&verifyManifestPath, "manifest", "campaign.yaml", "path to the campaign manifest")
	verifyCmd.Flags().StringVar(&verifyContentPath, "content", "", "path to the compiled campaign content to fingerprint")
	_ = verifyCmd.MarkFlagRequired("content")
	rootCmd.AddCommand(verifyCmd)
}

var verifyCmd = &cobra.Command{
	Use:   "verify <run-id>",
	Short: "Check a recorded run against the available campaign content",
	Long: `Folds the run's stream to recover the campaign fingerprint it was
recorded against, fingerprints the available content, and reports whether
the run may replay. An incompatible run exits non-zero.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		runID := args[0]

		manifest, err := campaign.LoadManifest(verifyManifestPath)
		if err != nil {
			return fmt.Errorf("load manifest: %w", err)
		}
		source, err := os.ReadFile(verifyContentPath)
		if err != nil {
			return fmt.Errorf("read content: %w", err)
		}
		available := campaign.Content{
			CampaignID:  manifest.CampaignID,
			VersionHash: campaign.Fingerprint(source),
			Manifest:    manifest,
		}

		st, err := openJournal()
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer st.Close()

		_, events, err := registries()
		if err != nil {
			return err
		}

		state := session.NewState()
		stream, err := st.LoadEvents(cmd.Context(), runID)
		if err != nil {
			return fmt.Errorf("load run stream: %w", err)
		}
		if len(stream) == 0 {
			return fmt.Errorf("run %s has no recorded events", runID)
		}
		for _, evt := range stream {
			upcast, err := events.Upcast(evt)
			if err != nil {
				return err
			}
			if state, err = session.Fold(state, upcast); err != nil {
				return err
			}
		}

		run := state.CampaignRun(runID)
		if run.EngineVersion == "" {
			run.EngineVersion = engineVersion
		}

		verdict := campaign.Gate{}.Check(run, available)
		if !verdict.Compatible {
			return &campaign.IncompatibleError{RunID: runID, Reason: verdict.Reason}
		}

		fmt.Fprintf(cmd.OutOrStdout(), "run %s is compatible with content %s\n", runID, available.VersionHash)
		return nil
	},
}
