package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"squad-planner/internal/api"
	"squad-planner/internal/config"
	"squad-planner/internal/derive"
	"squad-planner/internal/render"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var parseCmd = &cobra.Command{
	Use:   "parse <file>...",
	Short: "Extract attributes from recognized text or screenshots",
	Long: `Parse prints the attribute table for one player.

Text files are parsed as they are. Image files (png, jpg, jpeg, webp) are
sent to the Vision API first, which needs VISION_API_KEY.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		seed, err := loadSeed()
		if err != nil {
			return err
		}
		texts, err := readTexts(args)
		if err != nil {
			return err
		}
		return render.Attributes(cmd.OutOrStdout(), derive.ParseMany(texts, seed.DesiredKeys))
	},
}

func isImage(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".jpg", ".jpeg", ".webp":
		return true
	}
	return false
}

// readTexts returns the text of every file, recognizing images on the way.
func readTexts(paths []string) ([]string, error) {
	var vision *api.VisionClient
	texts := make([]string, 0, len(paths))

	for _, path := range paths {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if !isImage(path) {
			texts = append(texts, string(b))
			continue
		}

		if vision == nil {
			cfg, err := config.Load(cliLogger())
			if err != nil {
				return nil, err
			}
			vision = api.NewVisionClient(cfg, cliLogger())
		}
		text, err := vision.Recognize(rootCtx, b)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		texts = append(texts, text)
	}
	return texts, nil
}

var scoreCmd = &cobra.Command{
	Use:   "score <file>...",
	Short: "Show the damage score breakdown for one role",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		role, err := parseRoleArg(viper.GetString("role"))
		if err != nil {
			return err
		}
		seed, err := loadSeed()
		if err != nil {
			return err
		}
		texts, err := readTexts(args)
		if err != nil {
			return err
		}

		attrs := derive.ParseMany(texts, seed.DesiredKeys).Map()
		calc := derive.NewCalculator(seed.RolePrefixes)
		bonus := viper.GetString("bonus")
		breakdown := calc.Breakdown(attrs, role, bonus)
		final := calc.FinalDamage(attrs, role, bonus, viper.GetString("multiplier"))
		return render.Breakdown(cmd.OutOrStdout(), role, breakdown, final)
	},
}

func init() {
	scoreCmd.Flags().String("role", "archer", "role to score: archer, cavalry or siege")
	scoreCmd.Flags().String("bonus", "0", "atlantis damage bonus")
	scoreCmd.Flags().String("multiplier", "1", "player multiplier")
	_ = viper.BindPFlags(scoreCmd.Flags())
}
