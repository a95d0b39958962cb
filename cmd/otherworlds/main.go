// Command otherworlds operates on a local event journal: replaying streams,
// verifying a run against campaign content, exporting run archives, and
// tailing live events off the bus.
package main

import (
	"github.com/spf13/cobra"

	"github.com/cebartling/otherworlds-rpg/internal/engine/event"
	"github.com/cebartling/otherworlds-rpg/internal/engine/runtime"
	"github.com/cebartling/otherworlds-rpg/internal/engine/store/sqlite"
	"github.com/cebartling/otherworlds-rpg/internal/narrative"
	"github.com/cebartling/otherworlds-rpg/internal/platform/config"
	"github.com/cebartling/otherworlds-rpg/internal/rules"
	"github.com/cebartling/otherworlds-rpg/internal/session"
	"github.com/cebartling/otherworlds-rpg/internal/worldstate"
)

// engineVersion is what verify reports to the compatibility gate when the
// run stream predates engine stamping.
const engineVersion = "1.0.0"

// Config holds the environment-derived defaults for the CLI.
type Config struct {
	JournalPath string `env:"OTHERWORLDS_JOURNAL" envDefault:"otherworlds.db"`
	NATSURL     string `env:"OTHERWORLDS_NATS_URL" envDefault:"nats://127.0.0.1:4222"`
	S3Region    string `env:"OTHERWORLDS_S3_REGION" envDefault:"us-east-1"`
	S3Endpoint  string `env:"OTHERWORLDS_S3_ENDPOINT"`
}

var (
	cfg         Config
	journalPath string
)

var rootCmd = &cobra.Command{
	Use:           "otherworlds <command>",
	Short:         "Operate on an otherworlds event journal",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	if err := config.FromEnv(&cfg); err != nil {
		config.Fatalf("load environment: %v", err)
	}
	rootCmd.PersistentFlags().StringVar(&journalPath, "journal", cfg.JournalPath, "path to the sqlite event journal")
}

// openJournal opens the configured sqlite journal.
func openJournal() (*sqlite.Store, error) {
	return sqlite.Open(journalPath)
}

// registries wires every aggregate into fresh runtime and event registries.
func registries() (*runtime.Registry, *event.Registry, error) {
	reg := runtime.NewRegistry()
	events := event.NewRegistry()
	for _, register := range []func(*runtime.Registry, *event.Registry) error{
		narrative.Register,
		worldstate.Register,
		rules.Register,
		session.Register,
	} {
		if err := register(reg, events); err != nil {
			return nil, nil, err
		}
	}
	return reg, events, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		config.Fatalf("%v", err)
	}
}
