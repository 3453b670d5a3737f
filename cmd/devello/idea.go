package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/devello/devello-studios/internal/cli"
	"github.com/devello/devello-studios/internal/ideas"
)

var (
	supabaseURLFlag string
	anonKeyFlag     string
	sourceFlag      string
	limitFlag       int
)

var ideaCmd = &cobra.Command{
	Use:   "idea",
	Short: "Submit and list ideas on the studio board",
	Long: `Ideas are stored in the Supabase project's ideas table. The project URL and
anon key default to SUPABASE_URL and SUPABASE_ANON_KEY; --token (or
DEVELLO_ACCESS_TOKEN) signs the request in as the current user.`,
}

var ideaSubmitCmd = &cobra.Command{
	Use:   "submit [text]",
	Short: "Submit an idea",
	Run: func(cmd *cobra.Command, args []string) {
		text := strings.TrimSpace(strings.Join(args, " "))
		if text == "" {
			text = cli.PromptForLine(os.Stdin, os.Stderr, "Idea", "")
		}
		if text == "" {
			log.Fatal().Msg("An idea is required")
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		idea, err := initIdeas().Submit(ctx, text, sourceFlag)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to submit idea")
		}
		fmt.Println(idea.ID)
	},
}

var ideaListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the newest ideas",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		list, err := initIdeas().List(ctx, limitFlag)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to list ideas")
		}
		cli.PrintIdeas(os.Stdout, list)
	},
}

func init() {
	pf := ideaCmd.PersistentFlags()
	pf.StringVar(&supabaseURLFlag, "supabase-url", "", "Supabase project URL (default $SUPABASE_URL)")
	pf.StringVar(&anonKeyFlag, "anon-key", "", "Supabase anon key (default $SUPABASE_ANON_KEY)")
	ideaSubmitCmd.Flags().StringVar(&sourceFlag, "source", ideas.DefaultSource, "Where the idea came from")
	ideaListCmd.Flags().IntVarP(&limitFlag, "limit", "n", ideas.DefaultLimit, "How many ideas to show")

	ideaCmd.AddCommand(ideaSubmitCmd, ideaListCmd)
}

// initIdeas reads the Supabase settings late so values from .env apply.
func initIdeas() *ideas.Client {
	url, key := supabaseURLFlag, anonKeyFlag
	if url == "" {
		url = os.Getenv("SUPABASE_URL")
	}
	if key == "" {
		key = os.Getenv("SUPABASE_ANON_KEY")
	}
	return cli.InitIdeas(url, key, tokenFlag)
}
