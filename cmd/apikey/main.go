// Command apikey provisions API keys for the climate risk API.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"github.com/google/uuid"
	mw "github.com/kiranshivaraju/climaterisk/internal/api/middleware"
	"github.com/kiranshivaraju/climaterisk/internal/config"
	"github.com/kiranshivaraju/climaterisk/internal/store"
	"github.com/kiranshivaraju/climaterisk/pkg/models"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

const keyPrefix = "cr_"

var knownScopes = []string{mw.ScopeRead, mw.ScopeWrite, mw.ScopeUpstream}

// keyCreator is the part of the store the command writes through.
type keyCreator interface {
	GetDefaultTenant(ctx context.Context) (*models.Tenant, error)
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "apikey",
		Short:        "Manage climate risk API keys",
		SilenceUsage: true,
	}
	root.AddCommand(newCreateCommand(connectStore))
	return root
}

// newCreateCommand builds `apikey create`. open is swapped in tests.
func newCreateCommand(open func(ctx context.Context, dbURL string) (keyCreator, func(), error)) *cobra.Command {
	var name string
	var scopes []string
	var dbURL string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key for the default tenant",
		Long: `Create an API key for the default tenant and print it once.
Only the bcrypt hash is stored; the raw key cannot be recovered later.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := checkScopes(scopes); err != nil {
				return err
			}
			keys, closeFn, err := open(cmd.Context(), dbURL)
			if err != nil {
				return err
			}
			defer closeFn()
			return createKey(cmd.Context(), keys, cmd.OutOrStdout(), rand.Reader, name, scopes)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Key name, unique per tenant")
	cmd.Flags().StringSliceVar(&scopes, "scopes", []string{mw.ScopeRead, mw.ScopeWrite}, "Comma-separated scopes (read, write, upstream)")
	cmd.Flags().StringVar(&dbURL, "database-url", os.Getenv("DATABASE_URL"), "Postgres connection URL")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func connectStore(ctx context.Context, dbURL string) (keyCreator, func(), error) {
	if dbURL == "" {
		return nil, nil, errors.New("database URL is required (--database-url or DATABASE_URL)")
	}
	pool, err := store.Connect(ctx, config.DatabaseConfig{
		URL:             dbURL,
		MaxOpenConns:    2,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Minute,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	return store.NewPostgresStore(pool), pool.Close, nil
}

func checkScopes(scopes []string) error {
	if len(scopes) == 0 {
		return errors.New("at least one scope is required")
	}
	for _, s := range scopes {
		if !slices.Contains(knownScopes, s) {
			return fmt.Errorf("unknown scope %q (valid: %v)", s, knownScopes)
		}
	}
	return nil
}

// generateKey returns a raw key of the form cr_<48 hex chars>.
func generateKey(r io.Reader) (string, error) {
	buf := make([]byte, 24)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("reading random bytes: %w", err)
	}
	return keyPrefix + hex.EncodeToString(buf), nil
}

func createKey(ctx context.Context, keys keyCreator, out io.Writer, random io.Reader, name string, scopes []string) error {
	tenant, err := keys.GetDefaultTenant(ctx)
	if err != nil {
		return fmt.Errorf("get default tenant: %w", err)
	}

	raw, err := generateKey(random)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing key: %w", err)
	}

	now := time.Now().UTC()
	key := &models.APIKey{
		ID:        uuid.New(),
		TenantID:  tenant.ID,
		Name:      name,
		KeyHash:   string(hash),
		KeyPrefix: raw[:mw.KeyPrefixLen],
		Scopes:    scopes,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := keys.CreateAPIKey(ctx, key); err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			return fmt.Errorf("a key named %q already exists", name)
		}
		return fmt.Errorf("create api key: %w", err)
	}

	fmt.Fprintf(out, "id:     %s\n", key.ID)
	fmt.Fprintf(out, "name:   %s\n", key.Name)
	fmt.Fprintf(out, "scopes: %v\n", key.Scopes)
	fmt.Fprintf(out, "key:    %s\n", raw)
	fmt.Fprintln(out, "Store this key now; it will not be shown again.")
	return nil
}
