package supabase

import (
	"context"
	"strings"

	postgrest "github.com/supabase-community/postgrest-go"
	"github.com/supabase-community/supabase-go"
	"poster-generator-backend/internal/config"
)

const (
	restPath   = "/rest/v1"
	restSchema = "public"
)

type accessTokenKey struct{}

// WithAccessToken attaches the caller's Supabase access token to ctx. Data
// calls made with ctx then run as that user, so row level security applies.
func WithAccessToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, accessTokenKey{}, token)
}

// AccessTokenFrom returns the token set by WithAccessToken, or "".
func AccessTokenFrom(ctx context.Context) string {
	token, _ := ctx.Value(accessTokenKey{}).(string)
	return token
}

type Client struct {
	Supabase *supabase.Client
	Config   *config.Config
}

func NewClient(cfg *config.Config) (*Client, error) {
	client, err := supabase.NewClient(cfg.SupabaseURL, cfg.DataKey(), nil)
	if err != nil {
		return nil, err
	}

	return &Client{
		Supabase: client,
		Config:   cfg,
	}, nil
}

// From starts a query on table. With a service role key the shared client is
// used. Otherwise the access token carried by ctx, if any, authorizes the
// request in place of the anon key.
func (c *Client) From(ctx context.Context, table string) *postgrest.QueryBuilder {
	token := AccessTokenFrom(ctx)
	if token == "" || !c.Config.ForwardsUserTokens() {
		return c.Supabase.From(table)
	}

	key := c.Config.DataKey()
	rest := postgrest.NewClient(strings.TrimSuffix(c.Config.SupabaseURL, "/")+restPath, restSchema, map[string]string{
		"apikey": key,
	})
	return rest.SetAuthToken(token).From(table)
}
