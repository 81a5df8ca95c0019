package main

import (
	"fmt"
	"strings"

	"squad-planner/internal/derive"
	"squad-planner/internal/domain"
	"squad-planner/internal/render"
	"squad-planner/internal/service"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func parseRoleArg(s string) (domain.Role, error) {
	role, ok := domain.ParseRole(s)
	if !ok {
		return "", fmt.Errorf("%w: %q", service.ErrInvalidRole, s)
	}
	return role, nil
}

var tiersCmd = &cobra.Command{
	Use:   "tiers",
	Short: "Print the current tier buckets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		var tiers *service.TierService
		stop, err := withApp(&tiers)
		if err != nil {
			return err
		}
		defer stop()

		var views derive.RoleBuckets
		if viper.GetBool("published") {
			snap, err := tiers.Latest(rootCtx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Revision %s published %s by %s\n",
				snap.Revision, snap.PublishedAt.Format("2006-01-02 15:04"), snap.PublishedBy)
			views = snap.Views
		} else {
			views, err = tiers.Recompute(rootCtx)
			if err != nil {
				return err
			}
		}
		return render.Tiers(cmd.OutOrStdout(), views, !color.NoColor)
	},
}

var formationCmd = &cobra.Command{
	Use:   "formation <role> <slot>",
	Short: "Print the troop allocation of a formation",
	Long: `Formation prints the allocation for a role (archer, cavalry, siege) and a
slot (tower, throne) using the stored counts and current tier averages.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		role, err := parseRoleArg(args[0])
		if err != nil {
			return err
		}
		slot, ok := domain.ParseSlot(args[1])
		if !ok {
			return fmt.Errorf("%w: %q", service.ErrInvalidSlot, strings.TrimSpace(args[1]))
		}

		var formations *service.FormationService
		stop, err := withApp(&formations)
		if err != nil {
			return err
		}
		defer stop()

		settings, err := formations.Settings(rootCtx, role, slot)
		if err != nil {
			return err
		}
		rows, err := formations.Load(rootCtx, role, slot)
		if err != nil {
			return err
		}
		return render.Formation(cmd.OutOrStdout(), settings, role, rows)
	},
}

var kptCmd = &cobra.Command{
	Use:   "kpt",
	Short: "Compute kills per troop committed",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		kpt := derive.KPT(viper.GetInt("kills"), viper.GetInt("losses"), viper.GetInt("wounded"), viper.GetInt("survivors"))
		_, err := fmt.Fprintln(cmd.OutOrStdout(), kpt)
		return err
	},
}

func init() {
	tiersCmd.Flags().Bool("published", false, "show the last published summary instead of recomputing")
	_ = viper.BindPFlags(tiersCmd.Flags())

	kptCmd.Flags().Int("kills", 0, "enemy troops killed")
	kptCmd.Flags().Int("losses", 0, "own troops lost")
	kptCmd.Flags().Int("wounded", 0, "own troops wounded")
	kptCmd.Flags().Int("survivors", 0, "own troops surviving")
	_ = viper.BindPFlags(kptCmd.Flags())
}
