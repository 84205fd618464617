package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/transcodarr/internal/models"
	"github.com/jmylchreest/transcodarr/internal/repository"
	"github.com/jmylchreest/transcodarr/internal/service"
)

var (
	profileCodec      string
	profileContainer  string
	profileQuality    int
	profileAudio      string
	profileSubtitle   string
	profileSetDefault bool
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage encoding profiles",
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List encoding profiles",
	RunE:  runProfileList,
}

var profileCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create an encoding profile",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfileCreate,
}

var profileDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete an encoding profile",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfileDelete,
}

var profileSetDefaultCmd = &cobra.Command{
	Use:   "set-default <name>",
	Short: "Set the default encoding profile",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfileSetDefault,
}

func init() {
	profileCreateCmd.Flags().StringVar(&profileCodec, "codec", string(models.VideoCodecH265), "target video codec (h264, h265, vp9, av1)")
	profileCreateCmd.Flags().StringVar(&profileContainer, "container", string(models.ContainerMKV), "output container (mkv, mp4, webm)")
	profileCreateCmd.Flags().IntVar(&profileQuality, "quality", 28, "encoder CRF/quality value")
	profileCreateCmd.Flags().StringVar(&profileAudio, "audio-strategy", string(models.AudioStrategyPreserveAll), "audio track handling strategy")
	profileCreateCmd.Flags().StringVar(&profileSubtitle, "subtitle-strategy", string(models.SubtitleStrategyPreserveAll), "subtitle track handling strategy")
	profileCreateCmd.Flags().BoolVar(&profileSetDefault, "default", false, "make this the default profile")

	profileCmd.AddCommand(profileListCmd, profileCreateCmd, profileDeleteCmd, profileSetDefaultCmd)
	rootCmd.AddCommand(profileCmd)
}

// openProfileService opens the database and wraps its profile repository in
// the not-found-wrapping service layer the CLI shares with any future API.
func openProfileService() (*service.ProfileService, func(), error) {
	db, _, logger, err := openDB()
	if err != nil {
		return nil, nil, err
	}
	repo := repository.NewProfileRepository(db.DB)
	svc := service.NewProfileService(repo).WithLogger(logger)
	return svc, func() { _ = db.Close() }, nil
}

func runProfileList(_ *cobra.Command, _ []string) error {
	svc, closeDB, err := openProfileService()
	if err != nil {
		return err
	}
	defer closeDB()

	profiles, err := svc.GetAll(context.Background())
	if err != nil {
		return fmt.Errorf("listing profiles: %w", err)
	}

	if len(profiles) == 0 {
		fmt.Println("no profiles configured")
		return nil
	}

	for _, p := range profiles {
		marker := " "
		if p.IsDefault {
			marker = "*"
		}
		fmt.Printf("%s %-20s %-6s %-5s quality=%-4d audio=%s subtitle=%s\n",
			marker, p.Name, p.TargetVideoCodec, p.Container, p.Quality, p.AudioStrategy, p.SubtitleStrategy)
	}
	return nil
}

func runProfileCreate(_ *cobra.Command, args []string) error {
	profile := &models.Profile{
		Name:             args[0],
		TargetVideoCodec: models.VideoCodec(profileCodec),
		Container:        models.Container(profileContainer),
		Quality:          profileQuality,
		AudioStrategy:    models.AudioStrategy(profileAudio),
		SubtitleStrategy: models.SubtitleStrategy(profileSubtitle),
	}
	if err := profile.Validate(); err != nil {
		return fmt.Errorf("invalid profile: %w", err)
	}

	svc, closeDB, err := openProfileService()
	if err != nil {
		return err
	}
	defer closeDB()

	ctx := context.Background()
	if err := svc.Create(ctx, profile); err != nil {
		return fmt.Errorf("creating profile: %w", err)
	}
	if profileSetDefault {
		if err := svc.SetDefault(ctx, profile.ID); err != nil {
			return fmt.Errorf("setting default profile: %w", err)
		}
	}

	fmt.Printf("created profile %s (%s)\n", profile.Name, profile.ID)
	return nil
}

func runProfileDelete(_ *cobra.Command, args []string) error {
	svc, closeDB, err := openProfileService()
	if err != nil {
		return err
	}
	defer closeDB()

	ctx := context.Background()
	profile, err := svc.GetByName(ctx, args[0])
	if err != nil {
		return fmt.Errorf("looking up profile %q: %w", args[0], err)
	}
	if err := svc.Delete(ctx, profile.ID); err != nil {
		return fmt.Errorf("deleting profile: %w", err)
	}

	fmt.Printf("deleted profile %s\n", args[0])
	return nil
}

func runProfileSetDefault(_ *cobra.Command, args []string) error {
	svc, closeDB, err := openProfileService()
	if err != nil {
		return err
	}
	defer closeDB()

	ctx := context.Background()
	profile, err := svc.GetByName(ctx, args[0])
	if err != nil {
		return fmt.Errorf("looking up profile %q: %w", args[0], err)
	}
	if err := svc.SetDefault(ctx, profile.ID); err != nil {
		return fmt.Errorf("setting default profile: %w", err)
	}

	fmt.Printf("%s is now the default profile\n", args[0])
	return nil
}
