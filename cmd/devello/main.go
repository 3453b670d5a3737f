// Package main is a command-line client for the Devello Studios edit API.
//
// Each edit command prepares the image locally, validates the request before
// any network call, submits it, and follows the job until it finishes:
//
//	devello lighting photo.jpg --style "Cozy Evening" -o lit.jpg
//	devello edit photo.jpg --x 0.4 --y 0.6 --prompt "remove the lamp"
//	devello job <jobId>
//	devello spark "a weekend market photo series"
//	devello idea submit "rooftop portraits at dusk"
//	devello idea list
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/devello/devello-studios/internal/config"
	"github.com/devello/devello-studios/internal/logging"
	"github.com/devello/devello-studios/internal/resolve"
)

// Global flags
var (
	apiURLFlag      string
	tokenFlag       string
	outputFlag      string
	intervalFlag    int
	maxAttemptsFlag int
	quietFlag       bool
)

var rootCmd = &cobra.Command{
	Use:   "devello",
	Short: "Relight and edit photos with the Devello Studios API",
	Long: `devello sends photos to the Devello Studios edit API and waits for the result.

The API URL and access token default to DEVELLO_API_URL and
DEVELLO_ACCESS_TOKEN (a .env file in the working directory is read first).`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init()
	},
}

func init() {
	config.LoadDotEnv()

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&apiURLFlag, "api-url", os.Getenv("DEVELLO_API_URL"), "Edit API base URL")
	pf.StringVar(&tokenFlag, "token", os.Getenv("DEVELLO_ACCESS_TOKEN"), "Bearer access token")
	pf.StringVarP(&outputFlag, "output", "o", "", "Write the result image to this file")
	pf.IntVar(&intervalFlag, "interval", int(resolve.DefaultInterval.Seconds()), "Seconds between job status polls")
	pf.IntVar(&maxAttemptsFlag, "max-attempts", resolve.DefaultMaxAttempts, "Job status polls before giving up")
	pf.BoolVarP(&quietFlag, "quiet", "q", false, "Do not print progress")

	rootCmd.AddCommand(lightingCmd, editCmd, jobCmd, sparkCmd, ideaCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
