// Command seed fills a running product store with demo categories, sellers,
// products and reviews. It talks to the HTTP API only, so it works against
// either product backend.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	pkgconfig "github.com/timiFoxtrot/main-product-store/pkg/config"
	"github.com/timiFoxtrot/main-product-store/pkg/httpclient"
	"github.com/timiFoxtrot/main-product-store/pkg/logger"
)

type seedConfig struct {
	BaseURL        string        `env:"SEED_BASE_URL" envDefault:"http://localhost:3000"`
	AdminEmail     string        `env:"ADMIN_EMAIL,required"`
	AdminPassword  string        `env:"ADMIN_PASSWORD,required"`
	SellerPassword string        `env:"SEED_SELLER_PASSWORD" envDefault:"seller-password"`
	Timeout        time.Duration `env:"SEED_TIMEOUT" envDefault:"2m"`
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"info"`
}

func main() {
	var cfg seedConfig
	if err := pkgconfig.Load(&cfg, ".env"); err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log := logger.NewWithOptions(logger.Options{Service: "seed", Level: cfg.LogLevel, Format: "text"}, os.Stdout)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, cfg.Timeout)
	defer cancelTimeout()

	client := &apiClient{http: httpclient.New(httpclient.DefaultConfig()), baseURL: cfg.BaseURL}
	if err := run(ctx, client, cfg, log); err != nil {
		log.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, client *apiClient, cfg seedConfig, log *slog.Logger) error {
	adminToken, err := client.login(ctx, cfg.AdminEmail, cfg.AdminPassword)
	if err != nil {
		return err
	}
	admin := client.withToken(adminToken)

	categoryIDs, err := admin.ensureCategories(ctx, categories)
	if err != nil {
		return err
	}
	log.Info("categories ready", slog.Int("count", len(categoryIDs)))

	sellerClients := make([]*apiClient, len(sellers))
	for i, s := range sellers {
		token, err := client.ensureUser(ctx, s.name, s.email, cfg.SellerPassword)
		if err != nil {
			return err
		}
		sellerClients[i] = client.withToken(token)
	}
	log.Info("sellers ready", slog.Int("count", len(sellerClients)))

	// Products are spread round-robin over the sellers.
	created := make([][]*product, len(sellerClients))
	for i, def := range products {
		categoryID, ok := categoryIDs[def.category]
		if !ok {
			return fmt.Errorf("product %q refers to unknown category %q", def.name, def.category)
		}
		owner := i % len(sellerClients)
		p, err := sellerClients[owner].createProduct(ctx, def, categoryID)
		if err != nil {
			return err
		}
		created[owner] = append(created[owner], p)
		log.Debug("product created", slog.String("id", p.ID), slog.String("name", p.Name))
	}
	log.Info("products created", slog.Int("count", len(products)))

	// Every seller reviews every product of the next seller, never their own.
	reviews := 0
	for i, reviewer := range sellerClients {
		next := (i + 1) % len(sellerClients)
		if next == i {
			break
		}
		for _, p := range created[next] {
			rating := 3 + rand.IntN(3) // #nosec G404 -- demo data
			if err := reviewer.review(ctx, p.ID, rating, reviewComments[rating]); err != nil {
				return fmt.Errorf("review %s: %w", p.ID, err)
			}
			reviews++
		}
	}
	log.Info("seed complete", slog.Int("products", len(products)), slog.Int("reviews", reviews))
	return nil
}
