package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/prospecting-cli/internal/export"
	"github.com/sells-group/prospecting-cli/internal/model"
)

var (
	prospectICP         string
	prospectICPFile     string
	prospectMaxResults  int
	prospectMaterialize bool
	prospectOwner       string
	prospectXLSX        string
)

var prospectCmd = &cobra.Command{
	Use:   "prospect",
	Short: "Run a prospecting batch for an ICP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		icp, err := resolveICP(ctx, env.Store, prospectICP, prospectICPFile)
		if err != nil {
			return eris.Wrap(err, "resolve icp")
		}

		maxResults := prospectMaxResults
		if maxResults <= 0 {
			maxResults = cfg.Prospect.DefaultMaxResults
		}
		ownerID := prospectOwner
		if ownerID == "" {
			ownerID = icp.OwnerID
		}

		run, err := env.Store.CreateProspectingRun(ctx, model.ProspectingRun{
			ICPID:   icp.ID,
			Trigger: "manual",
		})
		if err != nil {
			return eris.Wrap(err, "record run")
		}

		result, err := env.Engine.Run(ctx, *icp, maxResults)
		if err != nil {
			if cerr := env.Store.CompleteProspectingRun(ctx, run.ID, "failed", 0, err.Error()); cerr != nil {
				zap.L().Warn("record run failure", zap.Error(cerr))
			}
			return eris.Wrap(err, "prospecting run")
		}

		if err := env.Store.CompleteProspectingRun(ctx, run.ID, "complete", result.Count, ""); err != nil {
			zap.L().Warn("record run completion", zap.Error(err))
		}

		if prospectMaterialize {
			created, err := env.Materializer.Materialize(ctx, result.Prospects, *icp, ownerID)
			if err != nil {
				return eris.Wrap(err, "materialize companies")
			}
			zap.L().Info("companies materialized", zap.Int("created", created))
		}

		if prospectXLSX != "" {
			if err := export.WriteXLSX(prospectXLSX, result.Prospects); err != nil {
				return eris.Wrap(err, "export xlsx")
			}
			zap.L().Info("xlsx written", zap.String("path", prospectXLSX))
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	prospectCmd.Flags().StringVar(&prospectICP, "icp", "", "ICP id or name from the registry")
	prospectCmd.Flags().StringVar(&prospectICPFile, "icp-file", "", "path to a local ICP YAML file")
	prospectCmd.Flags().IntVar(&prospectMaxResults, "max-results", 0, "max businesses to analyze (default from config)")
	prospectCmd.Flags().BoolVar(&prospectMaterialize, "materialize", false, "create CRM companies from results")
	prospectCmd.Flags().StringVar(&prospectOwner, "owner", "", "owner id for materialized companies (default from ICP)")
	prospectCmd.Flags().StringVar(&prospectXLSX, "xlsx", "", "write results to an XLSX file")
	rootCmd.AddCommand(prospectCmd)
}
