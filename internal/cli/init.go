package cli

import (
	"github.com/rs/zerolog/log"

	"github.com/devello/devello-studios/internal/client"
	"github.com/devello/devello-studios/internal/ideas"
)

// InitClient creates an API client for baseURL, or exits fatally when the
// URL is unusable.
func InitClient(baseURL, token string) *client.Client {
	if baseURL == "" {
		log.Fatal().Msg("No API URL configured. Set DEVELLO_API_URL or pass --api-url")
	}
	c, err := client.New(baseURL, client.WithToken(client.StaticToken(token)))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create API client")
	}
	if token == "" {
		log.Warn().Msg("No access token set; requests succeed only when the API does not require auth")
	}
	log.Debug().Str("apiUrl", baseURL).Msg("API client initialized")
	return c
}

// InitIdeas creates an ideas client for the Supabase project, or exits
// fatally when it is not configured.
func InitIdeas(supabaseURL, anonKey, token string) *ideas.Client {
	if supabaseURL == "" || anonKey == "" {
		log.Fatal().Msg("Ideas need a Supabase project. Set SUPABASE_URL and SUPABASE_ANON_KEY or pass --supabase-url and --anon-key")
	}
	c, err := ideas.New(supabaseURL, anonKey, ideas.WithAccessToken(token))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create ideas client")
	}
	return c
}
