package cmd

import (
	"fmt"

	"github.com/kozaktomas/facegate/internal/config"
	"github.com/kozaktomas/facegate/internal/enroll"
	"github.com/kozaktomas/facegate/internal/vision"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll [name] [surname]",
	Short: "Enroll a person from captured face frames",
	Long: `Enroll a person by running a capture session over a directory of
recorded frames. Frames that pass the quality gate contribute a
descriptor sample; the session completes once enough samples are
collected and the subject is persisted with its templates.`,
	Args: cobra.ExactArgs(2),
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().String("frames", "", "Directory of recorded frames to capture from")
	enrollCmd.Flags().Int("access-level", 1, "Access level granted to the subject")
}

func runEnroll(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	name, surname := args[0], args[1]
	accessLevel := mustGetInt(cmd, "access-level")

	pool, repo, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	source, err := openFrames(mustGetString(cmd, "frames"), cfg, false)
	if err != nil {
		return err
	}
	defer source.Close()

	detector := vision.NewHTTPDetector(cfg.Extractor.URL)
	extractor := vision.NewHTTPExtractor(cfg.Extractor.URL)
	orchestrator := enroll.NewOrchestrator(source, detector, detector, extractor, buildGate(cfg), enrollOptions(cfg))

	bar := progressbar.NewOptions(cfg.Enrollment.MinSamples,
		progressbar.OptionSetDescription("Capturing samples"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
	)

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for ev := range orchestrator.Events() {
			switch ev.Type {
			case enroll.EventSampleCaptured:
				_ = bar.Set(ev.Captured)
			case enroll.EventQualityReject:
				fmt.Printf("\nRejected frame: %s\n", ev.Message)
			}
		}
	}()

	result, err := orchestrator.Run(cmd.Context())
	<-drained
	fmt.Println()
	if err != nil {
		return fmt.Errorf("capture session failed: %w", err)
	}

	if result.State != enroll.StateCompleted {
		return fmt.Errorf("enrollment aborted: %s", result.Reason)
	}

	enroller := enroll.NewEnroller(repo, buildCache(cfg, repo), buildMatcher(cfg, 0), cfg.Enrollment.PhotosDir)
	subject, err := enroller.Enroll(cmd.Context(), name, surname, accessLevel, result.Samples)
	if err != nil {
		return fmt.Errorf("failed to persist enrollment: %w", err)
	}

	fmt.Printf("Enrolled %s %s (subject %d) with %d templates\n",
		subject.Name, subject.Surname, subject.ID, len(result.Samples))
	return nil
}
