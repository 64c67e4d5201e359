package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/prospecting-cli/internal/analyzer"
	"github.com/sells-group/prospecting-cli/internal/materialize"
	"github.com/sells-group/prospecting-cli/internal/model"
	"github.com/sells-group/prospecting-cli/internal/prospecting"
	"github.com/sells-group/prospecting-cli/internal/registry"
	"github.com/sells-group/prospecting-cli/internal/search"
	"github.com/sells-group/prospecting-cli/internal/store"
	anthropicpkg "github.com/sells-group/prospecting-cli/pkg/anthropic"
	"github.com/sells-group/prospecting-cli/pkg/notion"
	"github.com/sells-group/prospecting-cli/pkg/places"
)

// appEnv holds the initialized store, engine, and materializer shared by the
// prospect, schedule, and serve commands.
type appEnv struct {
	Store        store.Store
	Engine       *prospecting.Engine
	Materializer *materialize.Materializer
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "prospecting.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initEnv sets up the store, API clients, analyzers, and orchestrator.
// Callers should defer env.Close().
func initEnv(ctx context.Context) (*appEnv, error) {
	if cfg.Places.Key == "" {
		return nil, eris.New("places API key is required (PROSPECT_PLACES_KEY)")
	}
	if cfg.Anthropic.Key == "" {
		return nil, eris.New("anthropic API key is required (PROSPECT_ANTHROPIC_KEY)")
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	placesClient := places.NewClient(cfg.Places.Key, places.WithBaseURL(cfg.Places.BaseURL))
	anthropicClient := anthropicpkg.NewClient(cfg.Anthropic.Key)

	agency := model.AgencyContext{
		Name:        cfg.Agency.Name,
		Services:    cfg.Agency.Services,
		Positioning: cfg.Agency.Positioning,
	}

	engine := prospecting.NewEngine(
		search.NewPlacesSearcher(placesClient),
		analyzer.NewWebsiteAnalyzer(cfg.Analyzer),
		analyzer.NewAIAnalyzer(anthropicClient, cfg.Anthropic, agency),
		cfg.Prospect.PaceInterval(),
	)

	return &appEnv{
		Store:        st,
		Engine:       engine,
		Materializer: materialize.New(st),
	}, nil
}

// resolveICP loads the target ICP either from a local YAML file or from the
// Notion registry, then snapshots it into the store so schedules can use it.
func resolveICP(ctx context.Context, st store.Store, icpKey, icpFile string) (*model.ICP, error) {
	var icp *model.ICP
	var err error

	switch {
	case icpFile != "":
		icp, err = registry.LoadICPFile(icpFile)
		if err != nil {
			return nil, err
		}
	case icpKey != "":
		if cfg.Notion.Token == "" || cfg.Notion.ICPDB == "" {
			// No registry configured; fall back to a previously stored snapshot.
			return st.GetICP(ctx, icpKey)
		}
		client := notion.NewClient(cfg.Notion.Token)
		icps, err := registry.LoadICPRegistry(ctx, client, cfg.Notion.ICPDB)
		if err != nil {
			return nil, err
		}
		icp, err = registry.FindICP(icps, icpKey)
		if err != nil {
			return nil, err
		}
	default:
		return nil, eris.New("either --icp or --icp-file is required")
	}

	if err := st.SaveICP(ctx, *icp); err != nil {
		return nil, err
	}
	return icp, nil
}
