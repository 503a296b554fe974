// Bootstrap seeds a publisher, a priced endpoint, and an API key so a
// fresh deployment has something to sell. Run with:
//
//	go run scripts/bootstrap.go -database-url postgres://... \
//	    -publisher "Example News" -website https://news.example \
//	    -slug news -path /articles/:id -price 0.10
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/tessera/tessera/internal/auth"
	"github.com/tessera/tessera/internal/model"
	"github.com/tessera/tessera/internal/repository"
)

type output struct {
	PublisherID string   `json:"publisher_id"`
	EndpointID  string   `json:"endpoint_id"`
	KeyID       string   `json:"key_id"`
	Key         string   `json:"key"`
	KeyPrefix   string   `json:"key_prefix"`
	Scopes      []string `json:"scopes"`
}

func main() {
	var (
		databaseURL = flag.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
		pubName     = flag.String("publisher", "Example News", "Publisher display name")
		website     = flag.String("website", "https://news.example", "Publisher website origin")
		slug        = flag.String("slug", "news", "Publisher URL slug")
		wallet      = flag.String("wallet", "", "Publisher receiving wallet address (optional)")
		pathTmpl    = flag.String("path", "/articles/:id", "Priced endpoint path template")
		price       = flag.Float64("price", 0.10, "Price in USD")
		userID      = flag.String("user-id", "system", "User ID to own the API key")
		keyName     = flag.String("key-name", "bootstrap", "API key name")
		scopesInput = flag.String("scopes", "preview,fetch", "Comma-separated scopes (preview,fetch)")
		format      = flag.String("format", "plain", "Output format: plain or json")
	)
	flag.Parse()

	if *databaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	scopes, err := parseScopes(*scopesInput)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo, err := repository.New(ctx, *databaseURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "connect database:", err)
		os.Exit(1)
	}
	defer repo.Close()

	now := time.Now().UTC()

	publisher := &model.Publisher{
		ID:            ulid.Make().String(),
		Name:          *pubName,
		Slug:          *slug,
		Website:       *website,
		WalletAddress: *wallet,
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := repo.CreatePublisher(ctx, publisher); err != nil {
		fmt.Fprintln(os.Stderr, "create publisher:", err)
		os.Exit(1)
	}

	endpoint := &model.Endpoint{
		ID:           ulid.Make().String(),
		PublisherID:  publisher.ID,
		PathTemplate: *pathTmpl,
		PriceUSD:     *price,
		Active:       true,
		CreatedAt:    now,
	}
	if err := repo.CreateEndpoint(ctx, endpoint); err != nil {
		fmt.Fprintln(os.Stderr, "create endpoint:", err)
		os.Exit(1)
	}

	generated, err := auth.GenerateAPIKey(auth.EnvLive)
	if err != nil {
		fmt.Fprintln(os.Stderr, "generate api key:", err)
		os.Exit(1)
	}

	apiKey := &model.APIKey{
		ID:        ulid.Make().String(),
		UserID:    *userID,
		KeyHash:   generated.Hash,
		KeyPrefix: generated.Prefix,
		Name:      *keyName,
		Scopes:    scopes,
		Active:    true,
		CreatedAt: now,
	}
	if err := repo.CreateAPIKey(ctx, apiKey); err != nil {
		fmt.Fprintln(os.Stderr, "create api key:", err)
		os.Exit(1)
	}

	out := output{
		PublisherID: publisher.ID,
		EndpointID:  endpoint.ID,
		KeyID:       apiKey.ID,
		Key:         generated.Plaintext,
		KeyPrefix:   apiKey.KeyPrefix,
		Scopes:      scopes,
	}

	switch strings.ToLower(*format) {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
	default:
		fmt.Println(out.Key)
	}
}

func parseScopes(input string) ([]string, error) {
	valid := map[string]bool{
		model.ScopePreview: true,
		model.ScopeFetch:   true,
	}

	var scopes []string
	for _, s := range strings.Split(input, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if !valid[s] {
			return nil, fmt.Errorf("unknown scope %q", s)
		}
		scopes = append(scopes, s)
	}
	if len(scopes) == 0 {
		return nil, fmt.Errorf("at least one scope is required")
	}
	return scopes, nil
}
