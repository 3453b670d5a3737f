package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/devello/devello-studios/internal/cli"
)

var sparkCmd = &cobra.Command{
	Use:   "spark [idea]",
	Short: "Expand a short idea into a draft",
	Run: func(cmd *cobra.Command, args []string) {
		idea := strings.TrimSpace(strings.Join(args, " "))
		if idea == "" {
			idea = cli.PromptForLine(os.Stdin, os.Stderr, "Idea", "")
		}
		if idea == "" {
			log.Fatal().Msg("An idea is required")
		}

		c := cli.InitClient(apiURLFlag, tokenFlag)
		draft, err := c.IdeaSpark(context.Background(), idea)
		if err != nil {
			log.Fatal().Err(err).Msg("Idea spark failed")
		}
		fmt.Println(draft)
	},
}
