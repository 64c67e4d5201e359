package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/prospecting-cli/internal/model"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Manage recurring prospecting schedules",
}

var (
	schedName       string
	schedICP        string
	schedICPFile    string
	schedFrequency  string
	schedMaxResults int
	schedAutoCreate bool
	schedOwner      string
)

var scheduleCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a schedule",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		freq, err := model.ParseFrequency(schedFrequency)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		icp, err := resolveICP(ctx, st, schedICP, schedICPFile)
		if err != nil {
			return eris.Wrap(err, "resolve icp")
		}

		ownerID := schedOwner
		if ownerID == "" {
			ownerID = icp.OwnerID
		}
		maxResults := schedMaxResults
		if maxResults <= 0 {
			maxResults = cfg.Prospect.DefaultMaxResults
		}

		next := freq.NextRun(time.Now())
		sched, err := st.CreateSchedule(ctx, model.Schedule{
			Name:                schedName,
			ICPID:               icp.ID,
			Frequency:           freq,
			MaxResults:          maxResults,
			AutoCreateCompanies: schedAutoCreate,
			IsActive:            true,
			NextRunAt:           &next,
			OwnerID:             ownerID,
		})
		if err != nil {
			return eris.Wrap(err, "create schedule")
		}

		zap.L().Info("schedule created",
			zap.String("id", sched.ID),
			zap.String("frequency", string(sched.Frequency)),
			zap.Time("next_run", next),
		)
		return printJSON(sched)
	},
}

var (
	updName       string
	updFrequency  string
	updMaxResults int
	updAutoCreate bool
	updOwner      string
)

var scheduleUpdateCmd = &cobra.Command{
	Use:   "update <schedule-id>",
	Short: "Update a schedule's settings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		sched, err := st.GetSchedule(ctx, args[0])
		if err != nil {
			return err
		}

		flags := cmd.Flags()
		if flags.Changed("name") {
			if updName == "" {
				return eris.New("name cannot be empty")
			}
			sched.Name = updName
		}
		if flags.Changed("max-results") && updMaxResults > 0 {
			sched.MaxResults = updMaxResults
		}
		if flags.Changed("auto-create") {
			sched.AutoCreateCompanies = updAutoCreate
		}
		if flags.Changed("owner") {
			sched.OwnerID = updOwner
		}
		if flags.Changed("frequency") {
			freq, err := model.ParseFrequency(updFrequency)
			if err != nil {
				return err
			}
			// A frequency change restarts the period from now.
			sched.Frequency = freq
			next := freq.NextRun(time.Now())
			sched.NextRunAt = &next
		}

		if err := st.UpdateSchedule(ctx, *sched); err != nil {
			return eris.Wrap(err, "update schedule")
		}

		zap.L().Info("schedule updated",
			zap.String("id", sched.ID),
			zap.String("frequency", string(sched.Frequency)),
		)
		return printJSON(sched)
	},
}

var scheduleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List schedules",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		schedules, err := st.ListSchedules(ctx, false)
		if err != nil {
			return eris.Wrap(err, "list schedules")
		}
		return printJSON(schedules)
	},
}

var scheduleToggleCmd = &cobra.Command{
	Use:   "toggle <schedule-id>",
	Short: "Activate or deactivate a schedule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		sched, err := st.GetSchedule(ctx, args[0])
		if err != nil {
			return err
		}

		if err := st.SetScheduleActive(ctx, sched.ID, !sched.IsActive); err != nil {
			return err
		}

		zap.L().Info("schedule toggled",
			zap.String("id", sched.ID),
			zap.Bool("is_active", !sched.IsActive),
		)
		return nil
	},
}

var scheduleDeleteCmd = &cobra.Command{
	Use:   "delete <schedule-id>",
	Short: "Delete a schedule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.DeleteSchedule(ctx, args[0]); err != nil {
			return err
		}
		zap.L().Info("schedule deleted", zap.String("id", args[0]))
		return nil
	},
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	scheduleCreateCmd.Flags().StringVar(&schedName, "name", "", "schedule name (required)")
	scheduleCreateCmd.Flags().StringVar(&schedICP, "icp", "", "ICP id or name from the registry")
	scheduleCreateCmd.Flags().StringVar(&schedICPFile, "icp-file", "", "path to a local ICP YAML file")
	scheduleCreateCmd.Flags().StringVar(&schedFrequency, "frequency", "weekly", "daily, weekly, or monthly")
	scheduleCreateCmd.Flags().IntVar(&schedMaxResults, "max-results", 0, "max businesses per run (default from config)")
	scheduleCreateCmd.Flags().BoolVar(&schedAutoCreate, "auto-create", false, "materialize companies after each run")
	scheduleCreateCmd.Flags().StringVar(&schedOwner, "owner", "", "owner id for materialized companies")
	_ = scheduleCreateCmd.MarkFlagRequired("name")

	scheduleUpdateCmd.Flags().StringVar(&updName, "name", "", "new schedule name")
	scheduleUpdateCmd.Flags().StringVar(&updFrequency, "frequency", "", "daily, weekly, or monthly")
	scheduleUpdateCmd.Flags().IntVar(&updMaxResults, "max-results", 0, "max businesses per run")
	scheduleUpdateCmd.Flags().BoolVar(&updAutoCreate, "auto-create", false, "materialize companies after each run")
	scheduleUpdateCmd.Flags().StringVar(&updOwner, "owner", "", "owner id for materialized companies")

	scheduleCmd.AddCommand(scheduleCreateCmd, scheduleUpdateCmd, scheduleListCmd, scheduleToggleCmd, scheduleDeleteCmd)
	rootCmd.AddCommand(scheduleCmd)
}
